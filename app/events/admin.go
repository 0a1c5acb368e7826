package events

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/umputun/chat-guard/app/storage"
)

// Disposition is an admin's decision on a ledger entry.
type Disposition string

// admin dispositions
const (
	DispositionIgnore  Disposition = "ignore"
	DispositionBan     Disposition = "ban"
	DispositionMute    Disposition = "mute"
	DispositionUnknown Disposition = "unknown"
)

const adminUsageHint = "reply with one of: ignore, ban, mute"

// modLogStore is the subset of the ledger used by the admin handler.
type modLogStore interface {
	Get(ctx context.Context, id int64) (storage.ModLogEntry, error)
	SetAdminResponse(ctx context.Context, id int64, response string) error
}

// admin maps free-text administrator replies to dispositions against ledger
// entries and executes the resulting actions.
type admin struct {
	transport Transport
	modLog    modLogStore
	dry       bool
}

// ParseDisposition classifies free text into a disposition by case-insensitive
// substring containment, in priority order ignore > ban > mute.
func ParseDisposition(text string) Disposition {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, string(DispositionIgnore)):
		return DispositionIgnore
	case strings.Contains(lower, string(DispositionBan)):
		return DispositionBan
	case strings.Contains(lower, string(DispositionMute)):
		return DispositionMute
	}
	return DispositionUnknown
}

// Handle applies the admin's free-text reply to the referenced ledger entry and
// returns the reply to send back. Unknown dispositions never mutate the ledger.
func (a *admin) Handle(ctx context.Context, entryID int64, text string) (string, error) {
	disposition := ParseDisposition(text)
	if disposition == DispositionUnknown {
		return adminUsageHint, nil
	}

	entry, err := a.modLog.Get(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("can't find ledger entry %d: %w", entryID, err)
	}

	errs := new(multierror.Error)
	reply := ""

	switch disposition {
	case DispositionIgnore:
		reply = fmt.Sprintf("entry %d ignored", entryID)
	case DispositionMute:
		// reserved for future policy, acknowledged no-op
		reply = fmt.Sprintf("entry %d: mute acknowledged, no action taken", entryID)
	case DispositionBan:
		if a.dry {
			log.Printf("[INFO] dry mode, would remove %s from %s", entry.SenderHash, entry.Room)
			reply = fmt.Sprintf("entry %d: user would be removed (dry mode)", entryID)
			break
		}
		if err := a.transport.RemoveParticipant(ctx, entry.Room, entry.Sender); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to remove %s from %s: %w", entry.SenderHash, entry.Room, err))
		} else {
			log.Printf("[INFO] removed %s from %s on admin disposition", entry.SenderHash, entry.Room)
		}
		reply = fmt.Sprintf("entry %d: user removed from the room", entryID)
	}

	if err := a.modLog.SetAdminResponse(ctx, entryID, string(disposition)); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to record admin response: %w", err))
	}

	return reply, errs.ErrorOrNil()
}
