package webpush

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	defaultTTL     = 86400 // seconds the push service may hold the message
)

// Sender posts encrypted records to push service endpoints. Push
// services are expected to support RFC 8291; the sender declares the
// aes128gcm encoding and does not negotiate capabilities.
type Sender struct {
	client *http.Client
	ttl    int
}

// NewSender creates a Sender with the given per-request timeout.
// A zero timeout falls back to 10 seconds; sends must never block
// unbounded.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sender{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{MaxIdleConns: 1, MaxIdleConnsPerHost: 1},
		},
		ttl: defaultTTL,
	}
}

// SetTTL overrides the TTL header value in seconds.
func (s *Sender) SetTTL(seconds int) {
	if seconds > 0 {
		s.ttl = seconds
	}
}

// Send performs one HTTP POST delivering the encrypted record to the
// subscriber's endpoint. Any non-2xx status or transport failure is
// returned as a *SendError; the caller decides whether that prunes the
// subscription (e.g. on 404/410).
func (s *Sender) Send(ctx context.Context, sub *Subscriber, record []byte, authorization string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(record))
	if err != nil {
		return fmt.Errorf("webpush.Sender.Send: create request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("TTL", strconv.Itoa(s.ttl))
	req.Header.Set("Urgency", "high")

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendError{Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SendError{Endpoint: sub.Endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
