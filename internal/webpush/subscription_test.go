package webpush

import (
	"strings"
	"testing"
)

func TestParseSubscription(t *testing.T) {
	data := []byte(`{
		"user_id": "u7",
		"endpoint": "https://fcm.googleapis.com/fcm/send/abc",
		"keys": {"p256dh": "BCVxsr7N", "auth": "BTBZMqHH"}
	}`)

	sub, err := ParseSubscription(data)
	if err != nil {
		t.Fatalf("ParseSubscription: %v", err)
	}
	if sub.UserID != "u7" {
		t.Errorf("UserID = %q, want u7", sub.UserID)
	}
	if sub.Endpoint != "https://fcm.googleapis.com/fcm/send/abc" {
		t.Errorf("Endpoint = %q", sub.Endpoint)
	}
	if sub.Keys.P256dh != "BCVxsr7N" || sub.Keys.Auth != "BTBZMqHH" {
		t.Errorf("Keys = %+v", sub.Keys)
	}
}

func TestParseSubscription_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"not json", `{]`, ""},
		{"missing endpoint", `{"keys":{"p256dh":"x","auth":"y"}}`, "endpoint is required"},
		{"http endpoint", `{"endpoint":"http://insecure.example/wp","keys":{"p256dh":"x","auth":"y"}}`, "HTTPS"},
		{"missing p256dh", `{"endpoint":"https://p.example/wp","keys":{"auth":"y"}}`, "p256dh"},
		{"missing auth", `{"endpoint":"https://p.example/wp","keys":{"p256dh":"x"}}`, "auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubscription([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
