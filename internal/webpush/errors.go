package webpush

import (
	"errors"
	"fmt"
)

// Error kinds for one subscriber's send attempt. The dispatcher converts
// all of them into a failed count; none aborts the rest of a fan-out.
var (
	// ErrKeyFormat reports malformed stored key material (subscription
	// keys or VAPID credentials).
	ErrKeyFormat = errors.New("malformed key material")

	// ErrSigning reports a VAPID token signing failure.
	ErrSigning = errors.New("VAPID token signing failed")

	// ErrEncryption reports an ECDH, HKDF or AES-GCM failure.
	ErrEncryption = errors.New("payload encryption failed")
)

// SendError reports a push service rejection or transport failure for a
// single endpoint.
type SendError struct {
	Endpoint   string
	StatusCode int    // zero on transport failure
	Body       string // response text when available
	Err        error  // underlying transport error, if any
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webpush: send to %s: %v", e.Endpoint, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("webpush: push service returned %d for %s: %s", e.StatusCode, e.Endpoint, e.Body)
	}
	return fmt.Sprintf("webpush: push service returned %d for %s", e.StatusCode, e.Endpoint)
}

func (e *SendError) Unwrap() error { return e.Err }
