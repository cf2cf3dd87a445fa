package models

import (
	"encoding/json"
	"time"
)

// EstimateUnknown is the "?" card. It is accepted but never stored.
const EstimateUnknown = "?"

// EstimateOptions is the ordered set of numeric cards a participant may play.
var EstimateOptions = []float64{0, 0.5, 1, 2, 3, 5, 8}

// AutoAdvanceDelay is how long the voting view waits before moving to the next ticket.
const AutoAdvanceDelay = 500 * time.Millisecond

// Identity is the signed-in caller, taken from the bearer token
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Request types

type SignInRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type CreateSessionRequest struct {
	Name string `json:"name"`
}

type EndSessionRequest struct {
	Confirm bool `json:"confirm"`
}

type AddTicketRequest struct {
	TicketNumber string `json:"ticket_number"`
	Title        string `json:"title"`
	JiraLink     string `json:"jira_link"`
}

// Value is a JSON number or numeric string; anything unparsable becomes 0
type UpdateFinalValueRequest struct {
	Value json.RawMessage `json:"value"`
}

// Value is a JSON number from EstimateOptions or the string "?"
type SubmitVoteRequest struct {
	Value json.RawMessage `json:"value"`
}

// Response types

type SignInResponse struct {
	User    User   `json:"user"`
	Token   string `json:"token"`
	Created bool   `json:"created"`
}

type CreateSessionResponse struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Redirect      string `json:"redirect"`
}

type ListSessionsResponse struct {
	Sessions []ActiveSession `json:"sessions"`
}

type SessionDetailResponse struct {
	Session   Session `json:"session"`
	IsCreator bool    `json:"is_creator"`
}

type JoinSessionResponse struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Reused        bool   `json:"reused"`
	Redirect      string `json:"redirect"`
}

type ParticipantsResponse struct {
	Participants []Participant `json:"participants"`
}

// Tickets holds []Ticket for the creator and []VoterTicket for everyone else
type TicketsResponse struct {
	Tickets any `json:"tickets"`
}

type SubmitVoteResponse struct {
	TicketID       string   `json:"ticket_id"`
	Value          *float64 `json:"value"`
	Persisted      bool     `json:"persisted"`
	TotalVotes     int      `json:"total_votes"`
	NextTicketID   *string  `json:"next_ticket_id"`
	AdvanceAfterMs int64    `json:"advance_after_ms"`
}

type MyVotesResponse struct {
	Votes map[string]float64 `json:"votes"`
}

type ReviewResponse struct {
	Session      Session        `json:"session"`
	Tickets      []ReviewTicket `json:"tickets"`
	Participants []Participant  `json:"participants"`
	Stats        ReviewStats    `json:"stats"`
}

// Domain types

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveSession is one entry of the join picker
type ActiveSession struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	CreatedAgo string    `json:"created_ago"`
}

type Participant struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	JoinedAt  time.Time `json:"joined_at"`
}

type Ticket struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	TicketNumber string    `json:"ticket_number"`
	Title        string    `json:"title"`
	JiraLink     *string   `json:"jira_link,omitempty"`
	TotalVotes   int       `json:"total_votes"`
	MedianValue  float64   `json:"median_value"`
	FinalValue   float64   `json:"final_value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VoterTicket is what non-creators see: no median or final value
type VoterTicket struct {
	ID           string  `json:"id"`
	TicketNumber string  `json:"ticket_number"`
	Title        string  `json:"title"`
	JiraLink     *string `json:"jira_link,omitempty"`
	TotalVotes   int     `json:"total_votes"`
}

// ForVoter strips creator-only fields
func (t Ticket) ForVoter() VoterTicket {
	return VoterTicket{
		ID:           t.ID,
		TicketNumber: t.TicketNumber,
		Title:        t.Title,
		JiraLink:     t.JiraLink,
		TotalVotes:   t.TotalVotes,
	}
}

type Vote struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticket_id"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Value           float64   `json:"value"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Review types

type ReviewTicket struct {
	Ticket
	Votes  []Vote  `json:"votes"`
	Median float64 `json:"median"`
}

type ReviewStats struct {
	TicketCount      int `json:"ticket_count"`
	VotedTicketCount int `json:"voted_ticket_count"`
	ParticipantCount int `json:"participant_count"`
	VoteCount        int `json:"vote_count"`
}

// Error response

type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}
