package realtime

import "context"

// Tables that emit change events.
const (
	TableSessions     = "sessions"
	TableParticipants = "participants"
	TableTickets      = "tickets"
)

// Change types, named after the row operation that caused them.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event describes one row change within a session.
// Record is the voter-safe projection of the row; it is nil for deletes.
type Event struct {
	Table     string `json:"table"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	RecordID  string `json:"record_id"`
	Record    any    `json:"record,omitempty"`
}

// Publisher delivers change events to subscribers of a session.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
