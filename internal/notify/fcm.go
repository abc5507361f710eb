package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
)

// FCMTransport delivers through Firebase Cloud Messaging.
type FCMTransport struct {
	client *messaging.Client
}

// NewFCMTransport wraps a messaging client.
func NewFCMTransport(client *messaging.Client) *FCMTransport {
	return &FCMTransport{client: client}
}

// Send delivers a single push. Delivery failures come back classified as
// *TransportError.
func (t *FCMTransport) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		APNS:         apnsConfig(),
		Android:      androidConfig(),
	}
	if _, err := t.client.Send(ctx, msg); err != nil {
		return classify(err)
	}
	return nil
}

// SendMulticast delivers one push to up to maxMulticastTokens endpoints.
func (t *FCMTransport) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]SendResult, error) {
	msg := &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		APNS:         apnsConfig(),
		Android:      androidConfig(),
	}

	resp, err := t.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("multicast send: %w", err)
	}

	results := make([]SendResult, len(tokens))
	for i, r := range resp.Responses {
		results[i].Token = tokens[i]
		if !r.Success {
			results[i].Err = classify(r.Error)
		}
	}
	return results, nil
}

func classify(err error) *TransportError {
	switch {
	case messaging.IsUnregistered(err):
		return &TransportError{Kind: KindUnregistered, Err: err}
	case errorutils.IsInvalidArgument(err):
		return &TransportError{Kind: KindInvalidToken, Err: err}
	default:
		return &TransportError{Kind: KindOther, Err: err}
	}
}

func apnsConfig() *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{Sound: "default", Badge: &badge},
		},
	}
}

func androidConfig() *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Notification: &messaging.AndroidNotification{
			Sound:     "default",
			ChannelID: "cafeondo_default",
		},
	}
}
