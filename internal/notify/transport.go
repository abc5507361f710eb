package notify

import "context"

// SendResult is the outcome of one target within a multicast call. Err is
// nil on success, and a *TransportError otherwise.
type SendResult struct {
	Token string
	Err   error
}

// Transport is the push delivery collaborator. Implementations classify
// failures as *TransportError so the dispatcher can retire dead endpoints.
type Transport interface {
	// Send delivers to a single endpoint token.
	Send(ctx context.Context, token, title, body string, data map[string]string) error

	// SendMulticast delivers to up to maxMulticastTokens endpoints and
	// returns one result per token, in input order. The call-level error
	// is reserved for failures that prevented any send at all.
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]SendResult, error)
}
