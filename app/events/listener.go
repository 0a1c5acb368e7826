package events

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/go-pkgz/repeater"

	"github.com/umputun/chat-guard/app/storage"
	"github.com/umputun/chat-guard/lib/modcheck"
)

// Moderator is the moderation pipeline interface, satisfied by guard.Detector.
type Moderator interface {
	Check(ctx context.Context, req modcheck.Request) *modcheck.Verdict
}

// Verifier is the verification state machine interface.
type Verifier interface {
	OnJoin(ctx context.Context, roomID string, user User) error
	OnMessage(ctx context.Context, roomID string, user User, text string) bool
}

// Ledger is the moderation ledger interface used by the listener.
type Ledger interface {
	Create(ctx context.Context, entry storage.ModLogEntry, verdict *modcheck.Verdict) (int64, error)
	Get(ctx context.Context, id int64) (storage.ModLogEntry, error)
	SetAdminResponse(ctx context.Context, id int64, response string) error
}

// Archive is the message archive interface, feeds the aggregate queries.
type Archive interface {
	Add(ctx context.Context, room, sender, body string, ts time.Time) error
}

const metadataTTL = 5 * time.Minute

// Listener consumes the transport event stream and drives the engine:
// joins go to the verifier, messages through verification and then the
// moderation pipeline, admin-room replies to the disposition handler.
// Not thread safe, one listener per deployment.
type Listener struct {
	Transport   Transport
	Moderator   Moderator
	Verifier    Verifier
	ModLog      Ledger
	Archive     Archive
	AdminRoomID string // room where verdict reports go and admin replies come from
	Dry         bool   // report but don't delete or remove

	adminHandler *admin
	metaCache    cache.Cache[string, RoomMetadata]
}

// Do processes all events, blocked call. Any single-event failure is logged and
// the loop keeps accepting events, nothing here is fatal to the host process.
func (l *Listener) Do(ctx context.Context) error {
	log.Printf("[INFO] listener started, admin room %q, dry: %v", l.AdminRoomID, l.Dry)
	if l.Dry {
		log.Printf("[WARN] dry mode, no deletions or removals")
	}

	l.adminHandler = &admin{transport: l.Transport, modLog: l.ModLog, dry: l.Dry}
	l.metaCache = cache.NewCache[string, RoomMetadata]().WithMaxKeys(1000).WithTTL(metadataTTL)

	updates := l.Transport.Updates(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-updates:
			if !ok {
				return fmt.Errorf("transport updates channel closed")
			}
			if err := l.procEvent(ctx, event); err != nil {
				log.Printf("[WARN] failed to process event: %v", err)
			}
		}
	}
}

func (l *Listener) procEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventJoin:
		if err := l.Verifier.OnJoin(ctx, event.RoomID, event.User); err != nil {
			return fmt.Errorf("join handling failed for %s: %w", event.RoomID, err)
		}
		return nil
	case EventMessage:
		if event.Message == nil {
			return nil
		}
		if l.AdminRoomID != "" && event.RoomID == l.AdminRoomID {
			return l.procAdminReply(ctx, event)
		}
		return l.procMessage(ctx, event)
	}
	return nil
}

func (l *Listener) procMessage(ctx context.Context, event Event) error {
	msg := event.Message

	if err := l.Archive.Add(ctx, event.RoomID, event.User.ID, msg.Text, time.Now()); err != nil {
		log.Printf("[WARN] can't archive message: %v", err)
	}

	// pending verifications consume code attempts before moderation sees them
	if l.Verifier.OnMessage(ctx, event.RoomID, event.User, msg.Text) {
		return nil
	}

	meta := l.roomMeta(ctx, event.RoomID)
	if meta.IsAdmin(event.User.ID) {
		log.Printf("[DEBUG] message from room admin %s, moderation skipped", event.User.ID)
		return nil
	}

	req := modcheck.Request{
		Text:     msg.Text,
		UserID:   event.User.ID,
		UserName: event.User.DisplayName,
		RoomID:   event.RoomID,
	}
	if msg.MediaKind != "" && msg.MediaRef != "" {
		data, err := l.Transport.DownloadMedia(ctx, msg.MediaRef)
		if err != nil {
			log.Printf("[WARN] can't download media %s: %v", msg.MediaRef, err)
		} else {
			req.Media = &modcheck.Media{Kind: msg.MediaKind, Data: data}
		}
	}

	verdict := l.Moderator.Check(ctx, req)
	if verdict == nil {
		return nil
	}
	log.Printf("[INFO] verdict for %s in %s: %s", storage.HashIdentity(event.User.ID), event.RoomID, verdict)
	return l.applyVerdict(ctx, event, verdict)
}

func (l *Listener) applyVerdict(ctx context.Context, event Event, verdict *modcheck.Verdict) error {
	action := "delete"
	if l.Dry {
		action = "delete (dry)"
	}

	entry := storage.ModLogEntry{
		Room:        event.RoomID,
		Sender:      event.User.ID,
		DisplayName: event.User.DisplayName,
		Body:        event.Message.Text,
		Action:      action,
		MessageRef:  event.Message.Ref,
	}
	entryID, err := l.ModLog.Create(ctx, entry, verdict)
	if err != nil {
		return fmt.Errorf("can't create ledger entry: %w", err)
	}

	if l.Dry {
		log.Printf("[INFO] dry mode, would delete message %s", event.Message.Ref)
	} else if err := l.Transport.DeleteMessage(ctx, event.RoomID, event.Message.Ref); err != nil {
		log.Printf("[WARN] can't delete message %s: %v", event.Message.Ref, err)
	}

	// notify the user in the room language, delivery retried a few times
	meta := l.roomMeta(ctx, event.RoomID)
	locale := PickLocale(meta.DisplayName)
	notice := Content{Text: locale.ContentRemovedMsg(string(verdict.Kind))}
	if err := repeater.NewDefault(3, time.Second).Do(ctx, func() error {
		return l.Transport.DeliverMessage(ctx, event.RoomID, notice)
	}); err != nil {
		log.Printf("[WARN] can't deliver removal notice to %s: %v", event.RoomID, err)
	}

	if l.AdminRoomID != "" {
		report := fmt.Sprintf("entry %d: %s from %q in %q\nreply with %q to act: ignore, ban, mute",
			entryID, verdict, event.User.DisplayName, meta.DisplayName, fmt.Sprintf("%d <action>", entryID))
		if err := l.Transport.DeliverMessage(ctx, l.AdminRoomID, Content{Text: report}); err != nil {
			log.Printf("[WARN] can't report verdict to admin room: %v", err)
		}
	}
	return nil
}

// procAdminReply handles a message in the admin room, expected shape "<id> <text>"
// where id references a ledger entry.
func (l *Listener) procAdminReply(ctx context.Context, event Event) error {
	fields := strings.Fields(event.Message.Text)
	if len(fields) < 2 {
		return nil // not an actionable reply, ignore
	}
	entryID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil // no leading entry id, regular admin chatter
	}

	reply, err := l.adminHandler.Handle(ctx, entryID, strings.Join(fields[1:], " "))
	if err != nil {
		reply = "error: " + err.Error()
	}
	if reply != "" {
		if e := l.Transport.DeliverMessage(ctx, l.AdminRoomID, Content{Text: reply}); e != nil {
			log.Printf("[WARN] can't reply to admin room: %v", e)
		}
	}
	return err
}

// roomMeta returns metadata for the room, cached for a short TTL. Failures return
// empty metadata: no admins known, base locale.
func (l *Listener) roomMeta(ctx context.Context, roomID string) RoomMetadata {
	if meta, ok := l.metaCache.Get(roomID); ok {
		return meta
	}
	meta, err := l.Transport.RoomMetadata(ctx, roomID)
	if err != nil {
		log.Printf("[WARN] can't get metadata for room %s: %v", roomID, err)
		return RoomMetadata{}
	}
	l.metaCache.Set(roomID, meta, metadataTTL)
	return meta
}
