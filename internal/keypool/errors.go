package keypool

import "errors"

var (
	// ErrPoolExhausted is returned when a provider has no active credential.
	ErrPoolExhausted = errors.New("no active credential for provider")

	// ErrPoolTimeout is returned when the credential store did not answer
	// within the configured bound.
	ErrPoolTimeout = errors.New("credential lookup timed out")
)

// Unavailable reports whether err means "no pooled credential for this
// request", which callers may answer with a static fallback.
func Unavailable(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrPoolTimeout)
}
