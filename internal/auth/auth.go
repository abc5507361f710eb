// Package auth verifies caller identity for the HTTP surface. The engine
// itself only needs a verified user id; token mechanics live behind the
// Verifier interface.
package auth

import (
	"context"
	"fmt"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Verifier turns a bearer token into a verified user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// FirebaseVerifier validates Firebase ID tokens.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier wraps a Firebase auth client.
func NewFirebaseVerifier(client *firebaseauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify checks the ID token signature and expiry and returns the subject.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("verify id token: %w", err)
	}
	return decoded.UID, nil
}
