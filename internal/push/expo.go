package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/helpdesk-api/internal/config"
)

// expoTransport talks to an Expo-compatible push gateway.
type expoTransport struct {
	endpoint    string
	accessToken string
	client      *http.Client
	limiter     *rate.Limiter
}

func NewExpoTransport(cfg config.PushConfig) Transport {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 50
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = int(rps)
	}
	return &expoTransport{
		endpoint:    cfg.Endpoint,
		accessToken: cfg.AccessToken,
		client:      &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type expoMessage struct {
	To    []string               `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

type expoResponse struct {
	Data []struct {
		Status  string `json:"status"`
		ID      string `json:"id,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"data"`
}

func (t *expoTransport) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]interface{}) (*Result, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("push rate limiter: %w", err)
	}

	payload, err := json.Marshal(expoMessage{
		To:    tokens,
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.accessToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	var er expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}

	result := &Result{Tickets: make([]Ticket, 0, len(er.Data))}
	for i, item := range er.Data {
		ticket := Ticket{ID: item.ID}
		if i < len(tokens) {
			ticket.Token = tokens[i]
		}
		if item.Status == "ok" {
			ticket.Status = TicketStatusOK
			result.Sent++
		} else {
			ticket.Status = TicketStatusError
			ticket.Error = item.Message
			result.Failed++
		}
		result.Tickets = append(result.Tickets, ticket)
	}
	return result, nil
}
