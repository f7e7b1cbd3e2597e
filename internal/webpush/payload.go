package webpush

import (
	"encoding/json"
	"fmt"
)

const (
	defaultIcon  = "/icon-192.png"
	defaultBadge = "/icon-192.png"
)

// Payload is the notification content shown by the service worker. It is
// a plain value: serialized to JSON and encrypted before it leaves the
// process.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	Tag   string `json:"tag,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Marshal serializes the payload to the JSON bytes that get encrypted.
func (p Payload) Marshal() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("webpush.Payload.Marshal: %w", err)
	}
	return b, nil
}

// Constructors for the tracked business events. Tags let the service
// worker collapse repeated notifications of the same kind.

// RecordCreated announces a new inventory record added by actor.
func RecordCreated(actor, summary string) Payload {
	return Payload{
		Title: "New Record",
		Body:  fmt.Sprintf("%s added: %s", actor, summary),
		Icon:  defaultIcon,
		Badge: defaultBadge,
		Tag:   "new-record",
		URL:   "/",
	}
}

// StatusChanged announces a record moving to a new status.
func StatusChanged(summary, status string) Payload {
	return Payload{
		Title: "Status Change",
		Body:  fmt.Sprintf("%s is now %s", summary, status),
		Icon:  defaultIcon,
		Badge: defaultBadge,
		Tag:   "status-change",
		URL:   "/",
	}
}

// RecordDeleted announces a record removed by actor.
func RecordDeleted(actor, summary string) Payload {
	return Payload{
		Title: "Record Deleted",
		Body:  fmt.Sprintf("%s deleted: %s", actor, summary),
		Icon:  defaultIcon,
		Badge: defaultBadge,
		Tag:   "record-deleted",
		URL:   "/",
	}
}

// UserPending announces a newly registered user awaiting approval.
// Intended for admin subscribers only.
func UserPending(name string) Payload {
	return Payload{
		Title: "New User",
		Body:  fmt.Sprintf("%s registered and is awaiting approval", name),
		Icon:  defaultIcon,
		Badge: defaultBadge,
		Tag:   "new-user",
		URL:   "/admin",
	}
}

// RoleChanged notifies a user that their role was updated.
func RoleChanged(role string) Payload {
	return Payload{
		Title: "Role Updated",
		Body:  fmt.Sprintf("Your role has been changed to: %s", role),
		Icon:  defaultIcon,
		Badge: defaultBadge,
		Tag:   "role-changed",
		URL:   "/config",
	}
}
