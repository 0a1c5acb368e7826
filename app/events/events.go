// Package events provides the transport boundary of the governance engine and the
// high-level event handlers. The listener consumes join/message events, routes
// joins to the verifier and messages through the moderation pipeline, and handles
// admin dispositions against ledger entries.
package events

import (
	"context"

	"github.com/umputun/chat-guard/lib/modcheck"
)

//go:generate moq --out mocks/transport.go --pkg mocks --with-resets --skip-ensure . Transport

// Transport is the chat transport collaborator, only the subset of operations the
// engine consumes. Implementations deliver the event stream and perform membership
// and message mutations.
type Transport interface {
	Updates(ctx context.Context) <-chan Event
	DeliverMessage(ctx context.Context, roomID string, content Content) error
	DeleteMessage(ctx context.Context, roomID, messageRef string) error
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	RoomMetadata(ctx context.Context, roomID string) (RoomMetadata, error)
	DownloadMedia(ctx context.Context, mediaRef string) ([]byte, error)
}

// EventType distinguishes join events from messages.
type EventType string

// event types
const (
	EventJoin    EventType = "join"
	EventMessage EventType = "message"
)

// Event is a single inbound transport event.
type Event struct {
	Type    EventType
	RoomID  string
	User    User
	Message *Message // set for EventMessage
}

// User is the event sender or the joining participant.
type User struct {
	ID          string // transport identity, phone-shaped for phone-based transports
	DisplayName string
}

// Message is the message payload of an event.
type Message struct {
	Ref       string // opaque reference for deletion/restoration
	Text      string
	MediaKind modcheck.MediaKind // empty if no media attached
	MediaRef  string             // opaque reference for download, set with MediaKind
}

// Content is an outbound message payload.
type Content struct {
	Text  string
	Image []byte // optional rendered artifact, e.g. a challenge captcha
}

// RoomMetadata is the room info fetched from the transport.
type RoomMetadata struct {
	DisplayName  string
	Participants []Participant
}

// Participant is a room member with a role.
type Participant struct {
	ID          string
	DisplayName string
	Role        string // "admin", "owner" or "member"
}

// IsAdmin reports if the given user id is a room administrator.
func (m RoomMetadata) IsAdmin(userID string) bool {
	for _, p := range m.Participants {
		if p.ID == userID && (p.Role == "admin" || p.Role == "owner") {
			return true
		}
	}
	return false
}

// ParticipantName resolves a display name from the participant list,
// falling back to the id when the participant is unknown.
func (m RoomMetadata) ParticipantName(userID string) string {
	for _, p := range m.Participants {
		if p.ID == userID && p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return userID
}
