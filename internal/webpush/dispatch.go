// Package webpush delivers encrypted push notifications to browser push
// endpoints on behalf of the application, with no third-party push SDK:
// VAPID authentication (RFC 8292), payload encryption (RFC 8291) and
// fan-out with per-subscriber failure isolation.
package webpush

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultWorkers = 4

// DispatchResult aggregates one fan-out call. Sent plus Failed always
// equals the number of subscribers attempted.
type DispatchResult struct {
	ID     string // correlation id, also attached to log records
	Sent   int
	Failed int
}

// Dispatcher fans one notification event out to many subscribers. Each
// subscriber gets its own ECDH exchange, salt and VAPID token; a failure
// for one never aborts the rest.
type Dispatcher struct {
	creds   *Credentials
	sender  *Sender
	logger  *slog.Logger
	workers int
	timeout time.Duration // per-subscriber pipeline budget
}

// NewDispatcher creates a Dispatcher. The credentials are the sole
// shared input of a fan-out and are treated as read-only.
func NewDispatcher(creds *Credentials, sender *Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		creds:   creds,
		sender:  sender,
		logger:  logger,
		workers: defaultWorkers,
		timeout: defaultTimeout,
	}
}

// SetWorkers bounds how many subscribers are processed concurrently.
func (d *Dispatcher) SetWorkers(n int) {
	if n > 0 {
		d.workers = n
	}
}

// SetSendTimeout bounds one subscriber's pipeline, network call included.
func (d *Dispatcher) SetSendTimeout(t time.Duration) {
	if t > 0 {
		d.timeout = t
	}
}

// NotifyOne runs the full pipeline for a single subscriber: encrypt the
// payload, sign a VAPID token for the endpoint's origin, POST the record.
func (d *Dispatcher) NotifyOne(ctx context.Context, sub Subscriber, payload Payload) error {
	if d.creds == nil {
		return fmt.Errorf("webpush.Dispatcher.NotifyOne: missing VAPID credentials: %w", ErrKeyFormat)
	}

	body, err := payload.Marshal()
	if err != nil {
		return err
	}

	record, err := Encrypt(body, &sub)
	if err != nil {
		return err
	}

	authorization, err := authorizationHeader(sub.Endpoint, d.creds, time.Now())
	if err != nil {
		return err
	}

	return d.sender.Send(ctx, &sub, record, authorization)
}

// Notify delivers the payload to every subscriber and returns the
// aggregate outcome. See NotifyExcluding.
func (d *Dispatcher) Notify(ctx context.Context, subs []Subscriber, payload Payload) DispatchResult {
	return d.NotifyExcluding(ctx, subs, payload, "")
}

// NotifyExcluding delivers the payload to every subscriber except the
// one identified by exclude (matched against UserID, or Endpoint for
// registrations without a user id) — typically the actor who triggered
// the event. All subscribers are attempted regardless of earlier
// failures; every per-subscriber error is converted into the Failed
// count and logged, never propagated. An empty subscriber list is not an
// error and yields {0, 0}.
func (d *Dispatcher) NotifyExcluding(ctx context.Context, subs []Subscriber, payload Payload, exclude string) DispatchResult {
	result := DispatchResult{ID: uuid.NewString()}

	var (
		wg           sync.WaitGroup
		sent, failed atomic.Int64
	)
	sem := make(chan struct{}, d.workers)

	for _, sub := range subs {
		if excluded(sub, exclude) {
			continue
		}
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			if err := d.NotifyOne(sendCtx, sub, payload); err != nil {
				failed.Add(1)
				d.logger.Error("push delivery failed",
					"dispatch_id", result.ID,
					"endpoint", sub.Endpoint,
					"error", err)
				return
			}
			sent.Add(1)
		}(sub)
	}
	wg.Wait()

	result.Sent = int(sent.Load())
	result.Failed = int(failed.Load())
	d.logger.Info("push dispatch complete",
		"dispatch_id", result.ID,
		"sent", result.Sent,
		"failed", result.Failed)
	return result
}

// Go runs NotifyExcluding detached from the caller, for triggers that
// must not wait on delivery (fire-and-forget from a request handler).
// The goroutine owns its own copy of the subscriber list so it can
// safely outlive the request that spawned it.
func (d *Dispatcher) Go(subs []Subscriber, payload Payload, exclude string) {
	owned := make([]Subscriber, len(subs))
	copy(owned, subs)
	go d.NotifyExcluding(context.Background(), owned, payload, exclude)
}

func excluded(sub Subscriber, exclude string) bool {
	if exclude == "" {
		return false
	}
	if sub.UserID != "" {
		return sub.UserID == exclude
	}
	return sub.Endpoint == exclude
}
