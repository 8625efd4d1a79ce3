package webhook

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// SignatureHeader carries the pre-shared secret on payment provider deliveries.
const SignatureHeader = "verif-hash"

// ErrUnverified is returned when a delivery fails authentication.
var ErrUnverified = errors.New("webhook signature missing or mismatched")

// Authenticator decides whether an inbound delivery came from the provider.
// It only sees headers so authentication happens before the body is read.
type Authenticator interface {
	Authenticate(header http.Header) error
}

// ExactMatchAuthenticator accepts a delivery whose signature header equals the shared secret.
type ExactMatchAuthenticator struct {
	secret []byte
}

// NewExactMatchAuthenticator creates an authenticator for secret. An empty
// secret rejects everything.
func NewExactMatchAuthenticator(secret string) *ExactMatchAuthenticator {
	return &ExactMatchAuthenticator{secret: []byte(secret)}
}

// Authenticate implements Authenticator.
func (a *ExactMatchAuthenticator) Authenticate(header http.Header) error {
	got := header.Get(SignatureHeader)
	if len(a.secret) == 0 || strings.TrimSpace(got) == "" {
		return ErrUnverified
	}
	if subtle.ConstantTimeCompare([]byte(got), a.secret) != 1 {
		return ErrUnverified
	}
	return nil
}
