package webpush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/trackmind/pushkit/internal/codec"
)

// Subscriber is one browser/device push registration: the service
// endpoint plus the two key material fields the browser handed out at
// subscribe time. It is an immutable input; the pipeline never mutates it.
type Subscriber struct {
	UserID   string           `json:"user_id,omitempty"`
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys carries the client's key material, base64url-encoded
// as delivered by PushManager.subscribe().
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"` // uncompressed P-256 public key, 65 bytes
	Auth   string `json:"auth"`   // authentication secret, 16 bytes
}

// ParseSubscription parses and validates a subscription JSON document as
// posted by a browser.
func ParseSubscription(data []byte) (*Subscriber, error) {
	var sub Subscriber
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("webpush.ParseSubscription: %w", err)
	}
	if sub.Endpoint == "" {
		return nil, errors.New("webpush.ParseSubscription: endpoint is required")
	}
	if !strings.HasPrefix(sub.Endpoint, "https://") {
		return nil, errors.New("webpush.ParseSubscription: endpoint must use HTTPS")
	}
	if sub.Keys.P256dh == "" {
		return nil, errors.New("webpush.ParseSubscription: p256dh key is required")
	}
	if sub.Keys.Auth == "" {
		return nil, errors.New("webpush.ParseSubscription: auth secret is required")
	}
	return &sub, nil
}

// decodeKeys decodes and validates the subscription key material.
func (s *Subscriber) decodeKeys() (p256dh, auth []byte, err error) {
	p256dh, err = codec.DecodeBase64URL(s.Keys.P256dh)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: decode p256dh: %w", ErrKeyFormat)
	}
	if len(p256dh) != 65 || p256dh[0] != 0x04 {
		return nil, nil, fmt.Errorf("webpush: p256dh must be a 65-byte uncompressed point: %w", ErrKeyFormat)
	}
	auth, err = codec.DecodeBase64URL(s.Keys.Auth)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: decode auth secret: %w", ErrKeyFormat)
	}
	if len(auth) != 16 {
		return nil, nil, fmt.Errorf("webpush: auth secret must be 16 bytes, got %d: %w", len(auth), ErrKeyFormat)
	}
	return p256dh, auth, nil
}

// Filter narrows which registrations a SubscriberSource returns.
// The zero value selects all subscribers.
type Filter struct {
	UserID        string // only this user's registrations
	ExcludeUserID string // everyone except this user
	AdminsOnly    bool   // only users with the admin role
}

// SubscriberSource is the read-only accessor the host application
// implements over its own subscription storage. The push core never
// queries storage directly.
type SubscriberSource interface {
	ListSubscribers(ctx context.Context, f Filter) ([]Subscriber, error)
}
