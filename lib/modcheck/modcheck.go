// Package modcheck defines the request and verdict types shared by the moderation
// pipeline and its consumers. A single Verdict flows per message, first-match-wins.
package modcheck

import (
	"fmt"
	"strings"
)

// Request is a single inbound message to moderate.
type Request struct {
	Text      string `json:"text"`       // message text or media caption
	UserID    string `json:"user_id"`    // sender identity, transport-specific
	UserName  string `json:"user_name"`  // sender display name
	RoomID    string `json:"room_id"`    // room (group) identity
	Media     *Media `json:"media,omitempty"`
	CheckOnly bool   `json:"check_only"` // if true, only check the message, do not record it in the repeat streak
}

// Media is an attached media payload, already downloaded by the caller.
type Media struct {
	Kind MediaKind `json:"kind"`
	Data []byte    `json:"-"`
}

// MediaKind is a type of attached media.
type MediaKind string

// supported media kinds
const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
)

func (r *Request) String() string {
	media := "none"
	if r.Media != nil {
		media = string(r.Media.Kind)
	}
	return fmt.Sprintf("text:%q, user:%q, id:%s, room:%s, media:%s", r.Text, r.UserName, r.UserID, r.RoomID, media)
}

// Kind is a violation kind, one per pipeline stage.
type Kind string

// violation kinds
const (
	ExcessiveLinks  Kind = "excessive_links"
	ExcessiveCaps   Kind = "excessive_caps"
	RepeatedMessage Kind = "repeated_message"
	ToxicContent    Kind = "toxic_content"
	SensitiveTopic  Kind = "sensitive_topic"
	SensitiveImage  Kind = "sensitive_image"
	SensitiveVideo  Kind = "sensitive_video"
	SensitiveGIF    Kind = "sensitive_gif"
	PluginCheck     Kind = "plugin"
)

// Severity is an informational severity level, it drives no automatic action.
type Severity int

// severity levels
const (
	Low Severity = iota
	Medium
	High
)

func (s Severity) String() string {
	switch s {
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return "low"
}

// Verdict is an immutable result of a single classification pass.
// Kind determines which optional fields are set: topic verdicts carry Topic and
// Confidence, media verdicts additionally carry Description, toxic verdicts carry Scores.
type Verdict struct {
	Kind        Kind               `json:"kind"`
	Severity    Severity           `json:"severity"`
	Reason      string             `json:"reason"`
	Confidence  float64            `json:"confidence,omitempty"`
	Topic       string             `json:"topic,omitempty"`
	Description string             `json:"description,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
}

func (v *Verdict) String() string {
	elems := []string{fmt.Sprintf("%s (%s): %s", v.Kind, v.Severity, v.Reason)}
	if v.Topic != "" {
		elems = append(elems, "topic: "+v.Topic)
	}
	if v.Confidence > 0 {
		elems = append(elems, fmt.Sprintf("confidence: %.2f", v.Confidence))
	}
	return strings.Join(elems, ", ")
}

// IsMedia reports if the verdict came from the media path.
func (v *Verdict) IsMedia() bool {
	return v.Kind == SensitiveImage || v.Kind == SensitiveVideo || v.Kind == SensitiveGIF
}

// LoggedBody returns the text to persist for the verdict: media verdicts log the
// model description instead of the raw payload which is not retained.
func (v *Verdict) LoggedBody(msgText string) string {
	if v.IsMedia() && v.Description != "" {
		return v.Description
	}
	return msgText
}
