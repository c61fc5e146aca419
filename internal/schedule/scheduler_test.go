package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryFiresRepeatedly(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var fired int32
	if err := s.Every("tick", 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	time.Sleep(110 * time.Millisecond)

	if n := atomic.LoadInt32(&fired); n < 2 {
		t.Errorf("Expected at least 2 firings, got %d", n)
	}
}

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.Every("bad", 0, func() {}); err == nil {
		t.Error("Expected an error for a zero interval")
	}
	if err := s.Every("bad", -time.Second, func() {}); err == nil {
		t.Error("Expected an error for a negative interval")
	}
}

func TestDailyAtRejectsBadFormat(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.DailyAt("daily", "half past nine", func() {}); err == nil {
		t.Error("Expected an error for a malformed time")
	}
	if err := s.DailyAt("daily", "00:30", func() {}); err != nil {
		t.Errorf("Valid time rejected: %v", err)
	}
}

func TestDailyAtRejectsOutOfRangeTime(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	for _, bad := range []string{"99:99", "24:00", "12:60", "-1:30"} {
		if err := s.DailyAt("daily", bad, func() {}); err == nil {
			t.Errorf("Expected an error for time %q", bad)
		}
	}
	if err := s.DailyAt("daily", "23:59", func() {}); err != nil {
		t.Errorf("Valid time rejected: %v", err)
	}
}

func TestSlowJobDoesNotOverlapItself(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var active, overlaps, runs int32
	if err := s.Every("slow", 10*time.Millisecond, func() {
		if atomic.AddInt32(&active, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(60 * time.Millisecond)
		atomic.AddInt32(&runs, 1)
		atomic.AddInt32(&active, -1)
	}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Errorf("Job ran concurrently with itself %d times", n)
	}
	if n := atomic.LoadInt32(&runs); n < 2 {
		t.Errorf("Expected the job to re-arm after finishing, got %d runs", n)
	}
}

func TestCancelDuringRunPreventsRearm(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var runs int32
	if err := s.Every("slow", 10*time.Millisecond, func() {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
			<-release
		}
	}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	<-started
	if !s.Cancel("slow") {
		t.Fatal("Cancel reported no such job")
	}
	close(release)

	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&runs); n != 1 {
		t.Errorf("Job cancelled mid-run still fired, got %d runs", n)
	}
}

func TestCancelStopsFutureRuns(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var fired int32
	if err := s.Every("tick", 30*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	if !s.Cancel("tick") {
		t.Fatal("Cancel reported no such job")
	}
	if s.Cancel("tick") {
		t.Error("Second cancel should report no such job")
	}

	time.Sleep(80 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("Cancelled job still fired %d times", n)
	}
}

func TestReschedulingReplacesJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.Every("job", time.Hour, func() {}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}
	if err := s.Every("job", time.Minute, func() {}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	if got := s.Pending(); got != 1 {
		t.Errorf("Expected a single pending job after replacing, got %d", got)
	}
}

func TestScheduleAfterStopFails(t *testing.T) {
	s := NewScheduler()
	s.Start()
	s.Stop()

	if err := s.Every("late", time.Second, func() {}); err != ErrSchedulerStopped {
		t.Errorf("Expected ErrSchedulerStopped, got %v", err)
	}
}
