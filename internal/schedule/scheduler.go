package schedule

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSchedulerStopped is returned when scheduling against a stopped scheduler.
var ErrSchedulerStopped = errors.New("scheduler is stopped")

// job is one scheduled unit of work. next computes the run after at.
type job struct {
	id    string
	at    time.Time
	run   func()
	next  func(after time.Time) time.Time
	index int // heap position, -1 while running
}

// jobHeap is a min-heap of jobs ordered by their next run time
type jobHeap []*job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[0 : n-1]
	return j
}

// Scheduler runs recurring jobs from a single goroutine. A job re-arms
// only after its run returns, so a run slower than its interval delays
// its own next occurrence and never overlaps itself.
type Scheduler struct {
	mu      sync.Mutex
	jobs    jobHeap
	byID    map[string]*job
	wakeup  chan struct{}
	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. Call Start to begin running jobs.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		byID:   make(map[string]*job),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&s.jobs)
	return s
}

// Start launches the scheduler loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop halts the scheduler and waits for the loop and any in-flight
// jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
}

// Every schedules run at a fixed interval, first firing one interval
// from now. Re-scheduling an existing id replaces it.
func (s *Scheduler) Every(id string, interval time.Duration, run func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	return s.add(&job{
		id:  id,
		at:  time.Now().Add(interval),
		run: run,
		next: func(after time.Time) time.Time {
			return after.Add(interval)
		},
	})
}

// DailyAt schedules run once per day at the given "HH:MM" local time.
func (s *Scheduler) DailyAt(id string, timeOfDay string, run func()) error {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid time of day: %s (hour 0-23, minute 0-59)", timeOfDay)
	}

	next := func(after time.Time) time.Time {
		runAt := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
		if !runAt.After(after) {
			runAt = runAt.AddDate(0, 0, 1)
		}
		return runAt
	}

	return s.add(&job{
		id:   id,
		at:   next(time.Now()),
		run:  run,
		next: next,
	})
}

// Cancel removes a job. A job cancelled mid-run finishes its current
// run but does not re-arm. Returns false when no job has that id.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.byID[id]
	if !ok {
		return false
	}
	if j.index >= 0 {
		heap.Remove(&s.jobs, j.index)
	}
	delete(s.byID, id)
	return true
}

// Pending returns how many jobs are currently scheduled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Scheduler) add(j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.byID[j.id]; ok {
		if existing.index >= 0 {
			heap.Remove(&s.jobs, existing.index)
		}
		delete(s.byID, j.id)
	}

	heap.Push(&s.jobs, j)
	s.byID[j.id] = j
	s.wakeIfEarliest(j)
	return nil
}

// rearm pushes a job back onto the heap after its run returned. Jobs
// cancelled or replaced while running stay gone.
func (s *Scheduler) rearm(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.byID[j.id] != j {
		return
	}
	j.at = j.next(time.Now())
	heap.Push(&s.jobs, j)
	s.wakeIfEarliest(j)
}

// wakeIfEarliest interrupts the loop's wait when j is now the next job
// due. Caller holds the lock.
func (s *Scheduler) wakeIfEarliest(j *job) {
	if s.jobs[0] == j {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		s.mu.Lock()

		wait := time.Hour
		if s.jobs.Len() > 0 {
			earliest := s.jobs[0]
			wait = time.Until(earliest.at)

			if wait <= 0 {
				// The job stays in byID but off the heap while it
				// runs; it re-arms itself when done.
				j := heap.Pop(&s.jobs).(*job)
				s.wg.Add(1)
				s.mu.Unlock()

				go func() {
					defer s.wg.Done()
					j.run()
					s.rearm(j)
				}()
				continue
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}
