// Package verifier implements the participant verification state machine:
// NONE -> PENDING -> {VERIFIED | REMOVED} per (phone, room). New participants get
// a time-boxed captcha challenge, correct answers promote them to verified, and a
// periodic sweep removes those who didn't answer in time. The "verify" and
// "expire" transitions are mutually exclusive per key, guarded by conditional
// deletes in the store.
package verifier

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/go-pkgz/repeater"
	"github.com/hashicorp/go-multierror"

	"github.com/umputun/chat-guard/app/events"
	"github.com/umputun/chat-guard/app/storage"
)

// Store is the persistence interface for verification records.
type Store interface {
	CreatePending(ctx context.Context, rec storage.PendingVerification) error
	Pending(ctx context.Context, phone, room string) (storage.PendingVerification, bool, error)
	Complete(ctx context.Context, phone, room, code string, now time.Time) (bool, error)
	IsVerified(ctx context.Context, phone, room string) (bool, error)
	Expired(ctx context.Context, now time.Time) ([]storage.PendingVerification, error)
	ClaimExpired(ctx context.Context, phone, room string, now time.Time) (bool, error)
}

// Challenger is the external challenge-generation capability.
type Challenger interface {
	GenerateChallenge(width, height, length int) (code string, artifact []byte, err error)
}

// transport is the subset of the transport collaborator the verifier needs.
type transport interface {
	DeliverMessage(ctx context.Context, roomID string, content events.Content) error
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	RoomMetadata(ctx context.Context, roomID string) (events.RoomMetadata, error)
}

// Params configures the verification service.
type Params struct {
	Timeout       time.Duration // how long a participant has to answer, default 5m
	SweepInterval time.Duration // cadence of the expiry sweep, default 60s
	CaptchaWidth  int           // rendered challenge width, default 240
	CaptchaHeight int           // rendered challenge height, default 80
	CodeLength    int           // challenge code length, default 5
}

// Service is the verification state machine, thread-safe.
type Service struct {
	Params
	store      Store
	transport  transport
	challenger Challenger
	now        func() time.Time
}

// challenge-shaped text: short alphanumeric, what a code attempt looks like
var challengeShapeRe = regexp.MustCompile(`^[a-zA-Z0-9]{3,7}$`)

// NewService makes a verification service with defaults applied.
func NewService(store Store, tr transport, challenger Challenger, params Params) *Service {
	if params.Timeout == 0 {
		params.Timeout = 5 * time.Minute
	}
	if params.SweepInterval == 0 {
		params.SweepInterval = time.Minute
	}
	if params.CaptchaWidth == 0 {
		params.CaptchaWidth = 240
	}
	if params.CaptchaHeight == 0 {
		params.CaptchaHeight = 80
	}
	if params.CodeLength == 0 {
		params.CodeLength = 5
	}
	return &Service{Params: params, store: store, transport: tr, challenger: challenger, now: time.Now}
}

// OnJoin issues a challenge to a newly joined participant. A verified participant
// is never challenged again; a pending one gets a fresh challenge replacing the
// prior record (idempotent re-issue).
func (s *Service) OnJoin(ctx context.Context, roomID string, user events.User) error {
	verified, err := s.store.IsVerified(ctx, user.ID, roomID)
	if err != nil {
		return fmt.Errorf("can't check verified state for %s: %w", user.ID, err)
	}
	if verified {
		log.Printf("[DEBUG] %s already verified in %s, no challenge", user.ID, roomID)
		return nil
	}

	code, artifact, err := s.challenger.GenerateChallenge(s.CaptchaWidth, s.CaptchaHeight, s.CodeLength)
	if err != nil {
		return fmt.Errorf("can't generate challenge: %w", err)
	}

	now := s.now()
	rec := storage.PendingVerification{
		Phone:     user.ID,
		Room:      roomID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.Timeout),
	}
	if err := s.store.CreatePending(ctx, rec); err != nil {
		return fmt.Errorf("can't persist pending verification: %w", err)
	}

	locale := s.roomLocale(ctx, roomID)
	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	content := events.Content{
		Text:  locale.ChallengeMsg(name, int(s.Timeout.Minutes())),
		Image: artifact,
	}
	if err := s.transport.DeliverMessage(ctx, roomID, content); err != nil {
		return fmt.Errorf("can't deliver challenge to %s: %w", roomID, err)
	}
	log.Printf("[INFO] challenge issued to %s in %s, expires %s", storage.HashIdentity(user.ID), roomID,
		rec.ExpiresAt.Format(time.RFC3339))
	return nil
}

// OnMessage checks an inbound message against a pending challenge. Returns true if
// the message was consumed by the verification flow (right or wrong code), false
// when it should fall through to normal moderation handling.
func (s *Service) OnMessage(ctx context.Context, roomID string, user events.User, text string) bool {
	pending, found, err := s.store.Pending(ctx, user.ID, roomID)
	if err != nil {
		log.Printf("[WARN] can't check pending verification for %s: %v", user.ID, err)
		return false
	}
	if !found {
		return false // NONE or VERIFIED, nothing to consume
	}

	attempt := strings.ToLower(strings.TrimSpace(text))
	if attempt == strings.ToLower(pending.Code) {
		done, err := s.store.Complete(ctx, user.ID, roomID, pending.Code, s.now())
		if err != nil {
			log.Printf("[WARN] can't complete verification for %s: %v", user.ID, err)
			return true
		}
		if !done {
			// the sweep got there first, the post-transition state stands
			log.Printf("[DEBUG] verification for %s in %s already resolved", user.ID, roomID)
			return true
		}
		locale := s.roomLocale(ctx, roomID)
		name := user.DisplayName
		if name == "" {
			name = user.ID
		}
		s.deliver(ctx, roomID, events.Content{Text: locale.VerifiedMsg(name)})
		return true
	}

	if challengeShapeRe.MatchString(attempt) {
		// looks like a code attempt but doesn't match, record stays pending
		locale := s.roomLocale(ctx, roomID)
		s.deliver(ctx, roomID, events.Content{Text: locale.WrongCodeMsg()})
		return true
	}

	return false // unrelated prose, let moderation handle it
}

// Run starts the expiry sweep loop, blocked until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	log.Printf("[INFO] verification sweep started, interval %v, timeout %v", s.SweepInterval, s.Timeout)
	ticker := time.NewTicker(s.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] verification sweep stopped, %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("[WARN] verification sweep failed: %v", err)
			}
		}
	}
}

// Sweep resolves all expired pending records. Each record is claimed with a
// conditional delete before anything else happens: a correct answer landing
// mid-sweep consumes the row first, the claim then fails and the record is
// skipped. The claim also removes the row up front, so each expiry gets at most
// one removal attempt even when the removal itself fails.
func (s *Service) Sweep(ctx context.Context) error {
	now := s.now()
	expired, err := s.store.Expired(ctx, now)
	if err != nil {
		return fmt.Errorf("can't list expired verifications: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	claimed := 0
	errs := new(multierror.Error)
	for _, rec := range expired {
		ok, err := s.store.ClaimExpired(ctx, rec.Phone, rec.Room, now)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to claim expired record for %s in %s: %w",
				storage.HashIdentity(rec.Phone), rec.Room, err))
			continue
		}
		if !ok {
			log.Printf("[INFO] skipped %s in %s, verified while sweeping", storage.HashIdentity(rec.Phone), rec.Room)
			continue
		}
		claimed++

		locale := events.LocaleEN
		name := rec.Phone
		if meta, err := s.transport.RoomMetadata(ctx, rec.Room); err == nil {
			locale = events.PickLocale(meta.DisplayName)
			name = meta.ParticipantName(rec.Phone)
		}

		s.deliver(ctx, rec.Room, events.Content{Text: locale.TimeoutMsg(name)})

		removeErr := repeater.NewDefault(3, time.Second).Do(ctx, func() error {
			return s.transport.RemoveParticipant(ctx, rec.Room, rec.Phone)
		})
		if removeErr != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to remove %s from %s: %w",
				storage.HashIdentity(rec.Phone), rec.Room, removeErr))
			continue
		}
		log.Printf("[INFO] removed unverified %s from %s", storage.HashIdentity(rec.Phone), rec.Room)
	}

	log.Printf("[INFO] sweep done, %d expired, %d claimed", len(expired), claimed)
	return errs.ErrorOrNil()
}

func (s *Service) roomLocale(ctx context.Context, roomID string) events.Locale {
	meta, err := s.transport.RoomMetadata(ctx, roomID)
	if err != nil {
		log.Printf("[WARN] can't get metadata for room %s: %v", roomID, err)
		return events.LocaleEN
	}
	return events.PickLocale(meta.DisplayName)
}

func (s *Service) deliver(ctx context.Context, roomID string, content events.Content) {
	if err := s.transport.DeliverMessage(ctx, roomID, content); err != nil {
		log.Printf("[WARN] can't deliver message to %s: %v", roomID, err)
	}
}
