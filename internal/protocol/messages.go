package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// AlertEvent is published whenever the analyzer creates an alert row.
// The bot gateway and the notifier render it; the core never formats
// chat text.
type AlertEvent struct {
	AlertID   int64     `json:"alert_id"`
	UnitID    int64     `json:"unit_id"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// EncodeAlertEvent serializes an alert event for the queue.
func EncodeAlertEvent(e *AlertEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert event: %w", err)
	}
	return data, nil
}

// DecodeAlertEvent deserializes an alert event from the queue.
func DecodeAlertEvent(data []byte) (*AlertEvent, error) {
	var e AlertEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode alert event: %w", err)
	}
	return &e, nil
}

// ActionCommand is one "apply action" request from the bot gateway.
// UpdateID is the transport's monotonically increasing message id and
// drives exactly-once processing; ChatID keys the reply.
type ActionCommand struct {
	UpdateID int64   `json:"update_id"`
	ChatID   int64   `json:"chat_id"`
	UnitID   int64   `json:"unit_id"`
	Action   string  `json:"action"`
	Metric   string  `json:"metric,omitempty"`
	Value    string  `json:"value,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Admin    bool    `json:"admin,omitempty"`
}

// EncodeActionCommand serializes an action command for the queue.
func EncodeActionCommand(c *ActionCommand) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action command: %w", err)
	}
	return data, nil
}

// DecodeActionCommand deserializes an action command from the queue.
func DecodeActionCommand(data []byte) (*ActionCommand, error) {
	var c ActionCommand
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode action command: %w", err)
	}
	return &c, nil
}

// ActionReply carries the structured outcome of a command back to the
// gateway: success/failure plus any computed quantities to render.
type ActionReply struct {
	UpdateID int64              `json:"update_id"`
	ChatID   int64              `json:"chat_id"`
	Action   string             `json:"action"`
	OK       bool               `json:"ok"`
	Error    string             `json:"error,omitempty"`
	Values   map[string]float64 `json:"values,omitempty"`
	Text     map[string]string  `json:"text,omitempty"`
}

// EncodeActionReply serializes an action reply for the queue.
func EncodeActionReply(r *ActionReply) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action reply: %w", err)
	}
	return data, nil
}

// DecodeActionReply deserializes an action reply from the queue.
func DecodeActionReply(data []byte) (*ActionReply, error) {
	var r ActionReply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode action reply: %w", err)
	}
	return &r, nil
}
