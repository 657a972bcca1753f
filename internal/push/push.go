package push

import (
	"context"
)

// TicketStatus is the per-token outcome reported by the transport.
type TicketStatus string

const (
	TicketStatusOK    TicketStatus = "ok"
	TicketStatusError TicketStatus = "error"
)

// Ticket is one token's send outcome.
type Ticket struct {
	Status TicketStatus `json:"status"`
	ID     string       `json:"id,omitempty"`
	Error  string       `json:"error,omitempty"`
	Token  string       `json:"token,omitempty"`
}

// Result aggregates one send call across all tokens for a recipient.
type Result struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Error   string   `json:"error,omitempty"`
	Tickets []Ticket `json:"tickets"`
}

// FirstError returns the aggregate error, falling back to the first erroring
// ticket.
func (r *Result) FirstError() string {
	if r.Error != "" {
		return r.Error
	}
	for _, t := range r.Tickets {
		if t.Status == TicketStatusError && t.Error != "" {
			return t.Error
		}
	}
	return "push transport reported no deliveries"
}

// Transport sends one payload to a set of device tokens and reports
// per-token outcomes. A Result with Sent==0 is a channel-level failure; a
// transport error return means the call itself could not be made.
type Transport interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]interface{}) (*Result, error)
}
