package webpush

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeSubscriber builds a subscriber with freshly generated browser-side
// key material pointing at the given endpoint.
func makeSubscriber(t *testing.T, userID, endpoint string) Subscriber {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	sub := Subscriber{UserID: userID, Endpoint: endpoint}
	sub.Keys.P256dh = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	sub.Keys.Auth = base64.RawURLEncoding.EncodeToString(auth)
	return sub
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(testCredentials(t), NewSender(5*time.Second), discardLogger())
	d.SetSendTimeout(5 * time.Second)
	return d
}

func TestNotifyOne(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	d := newTestDispatcher(t)
	sub := makeSubscriber(t, "u1", server.URL+"/wp/abc")

	if err := d.NotifyOne(context.Background(), sub, Payload{Title: "T", Body: "B"}); err != nil {
		t.Fatalf("NotifyOne: %v", err)
	}

	if got := gotHeaders.Get("Content-Encoding"); got != "aes128gcm" {
		t.Errorf("Content-Encoding = %q, want aes128gcm", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := gotHeaders.Get("TTL"); got != "86400" {
		t.Errorf("TTL = %q, want 86400", got)
	}
	if got := gotHeaders.Get("Urgency"); got != "high" {
		t.Errorf("Urgency = %q, want high", got)
	}
	if auth := gotHeaders.Get("Authorization"); len(auth) < 10 || auth[:8] != "vapid t=" {
		t.Errorf("Authorization = %q, want vapid t=...", auth)
	}
	// salt + rs + idlen + keyid + at least the GCM tag
	if len(gotBody) < 102 {
		t.Errorf("body is %d bytes, too short for an aes128gcm record", len(gotBody))
	}
}

func TestNotifyOne_ServiceGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "subscription expired", http.StatusGone)
	}))
	defer server.Close()

	d := newTestDispatcher(t)
	sub := makeSubscriber(t, "u1", server.URL+"/wp/abc")

	err := d.NotifyOne(context.Background(), sub, Payload{Title: "T", Body: "B"})
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("error = %v, want *SendError", err)
	}
	if sendErr.StatusCode != http.StatusGone {
		t.Errorf("StatusCode = %d, want 410", sendErr.StatusCode)
	}
	if sendErr.Body == "" {
		t.Error("SendError should carry the response text")
	}
}

func TestNotifyOne_MissingCredentials(t *testing.T) {
	d := NewDispatcher(nil, NewSender(time.Second), discardLogger())
	sub := makeSubscriber(t, "u1", "https://push.example.net/wp/abc")

	err := d.NotifyOne(context.Background(), sub, Payload{Title: "T", Body: "B"})
	if !errors.Is(err, ErrKeyFormat) {
		t.Errorf("error = %v, want ErrKeyFormat", err)
	}
}

func TestNotify_CountsAndIsolation(t *testing.T) {
	var okHits, failHits atomic.Int32
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okHits.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer okServer.Close()
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failServer.Close()

	subs := []Subscriber{
		makeSubscriber(t, "u1", okServer.URL+"/wp/1"),
		makeSubscriber(t, "u2", failServer.URL+"/wp/2"),
		makeSubscriber(t, "u3", okServer.URL+"/wp/3"),
		makeSubscriber(t, "u4", failServer.URL+"/wp/4"),
		makeSubscriber(t, "u5", okServer.URL+"/wp/5"),
	}

	d := newTestDispatcher(t)
	result := d.Notify(context.Background(), subs, Payload{Title: "T", Body: "B"})

	if result.Sent != 3 || result.Failed != 2 {
		t.Errorf("result = {sent:%d failed:%d}, want {sent:3 failed:2}", result.Sent, result.Failed)
	}
	if result.Sent+result.Failed != len(subs) {
		t.Errorf("sent+failed = %d, want %d", result.Sent+result.Failed, len(subs))
	}
	// Failures must not short-circuit the remaining subscribers.
	if okHits.Load() != 3 || failHits.Load() != 2 {
		t.Errorf("attempts = %d ok + %d fail, want 3 + 2", okHits.Load(), failHits.Load())
	}
	if result.ID == "" {
		t.Error("dispatch result has no correlation id")
	}
}

func TestNotify_MalformedSubscriberCounted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	good := makeSubscriber(t, "u1", server.URL+"/wp/1")
	bad := Subscriber{UserID: "u2", Endpoint: server.URL + "/wp/2"}
	bad.Keys.P256dh = "!!!not-base64!!!"
	bad.Keys.Auth = "also-bad"

	d := newTestDispatcher(t)
	result := d.Notify(context.Background(), []Subscriber{good, bad}, Payload{Title: "T", Body: "B"})

	if result.Sent != 1 || result.Failed != 1 {
		t.Errorf("result = {sent:%d failed:%d}, want {sent:1 failed:1}", result.Sent, result.Failed)
	}
}

func TestNotifyExcluding(t *testing.T) {
	var mu sync.Mutex
	hitPaths := map[string]bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hitPaths[r.URL.Path] = true
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	subs := []Subscriber{
		makeSubscriber(t, "u1", server.URL+"/wp/1"),
		makeSubscriber(t, "u2", server.URL+"/wp/2"),
		makeSubscriber(t, "u3", server.URL+"/wp/3"),
	}

	d := newTestDispatcher(t)
	result := d.NotifyExcluding(context.Background(), subs, Payload{Title: "T", Body: "B"}, "u2")

	if result.Sent != 2 || result.Failed != 0 {
		t.Errorf("result = {sent:%d failed:%d}, want {sent:2 failed:0}", result.Sent, result.Failed)
	}
	mu.Lock()
	defer mu.Unlock()
	if hitPaths["/wp/2"] {
		t.Error("excluded subscriber's endpoint was contacted")
	}
	if !hitPaths["/wp/1"] || !hitPaths["/wp/3"] {
		t.Error("non-excluded subscribers were not all attempted")
	}
}

func TestNotifyExcluding_ByEndpoint(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	// No user id on the registration: exclusion falls back to the endpoint.
	sub := makeSubscriber(t, "", server.URL+"/wp/1")

	d := newTestDispatcher(t)
	result := d.NotifyExcluding(context.Background(), []Subscriber{sub}, Payload{Title: "T", Body: "B"}, sub.Endpoint)

	if result.Sent != 0 || result.Failed != 0 {
		t.Errorf("result = {sent:%d failed:%d}, want {sent:0 failed:0}", result.Sent, result.Failed)
	}
	if hits.Load() != 0 {
		t.Error("excluded endpoint was contacted")
	}
}

func TestNotify_EmptyList(t *testing.T) {
	d := newTestDispatcher(t)
	result := d.Notify(context.Background(), nil, Payload{Title: "T", Body: "B"})
	if result.Sent != 0 || result.Failed != 0 {
		t.Errorf("result = {sent:%d failed:%d}, want {sent:0 failed:0}", result.Sent, result.Failed)
	}
}

func TestGo_FireAndForget(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		close(done)
	}))
	defer server.Close()

	subs := []Subscriber{makeSubscriber(t, "u1", server.URL+"/wp/1")}

	d := newTestDispatcher(t)
	d.Go(subs, Payload{Title: "T", Body: "B"}, "")

	// The caller returned immediately; mutating its slice must not affect
	// the in-flight dispatch.
	subs[0] = Subscriber{}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("detached dispatch never reached the endpoint")
	}
}
