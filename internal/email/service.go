package email

import (
	"context"
)

// Service is the outbound email transport. Failures are terminal for the
// caller; retry, if any, belongs to the transport provider.
type Service interface {
	Send(ctx context.Context, to string, subject string, html string) error
}
