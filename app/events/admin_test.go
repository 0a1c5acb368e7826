package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/chat-guard/app/storage"
)

func TestParseDisposition(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Disposition
	}{
		{"plain ignore", "ignore", DispositionIgnore},
		{"plain ban", "ban", DispositionBan},
		{"plain mute", "mute", DispositionMute},
		{"mixed case", "BAN", DispositionBan},
		{"embedded in sentence", "please ban this user", DispositionBan},
		{"ignore wins over ban", "ignore, don't ban", DispositionIgnore},
		{"ban wins over mute", "ban or maybe mute", DispositionBan},
		{"unrelated text", "looks fine to me", DispositionUnknown},
		{"empty", "", DispositionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDisposition(tt.text))
		})
	}
}

func TestAdmin_Handle(t *testing.T) {
	ledger := &mockLedger{}
	ledger.entries = append(ledger.entries, storage.ModLogEntry{Room: "room1", Sender: "user1", SenderHash: "h1"})

	tr := &TransportMock{
		RemoveParticipantFunc: func(ctx context.Context, roomID, userID string) error { return nil },
	}
	a := &admin{transport: tr, modLog: ledger}

	t.Run("ignore records without action", func(t *testing.T) {
		tr.ResetCalls()
		reply, err := a.Handle(context.Background(), 1, "ignore")
		require.NoError(t, err)
		assert.Equal(t, "entry 1 ignored", reply)
		assert.Empty(t, tr.RemoveParticipantCalls())
		assert.Equal(t, "ignore", ledger.responses[1])
	})

	t.Run("ban removes the sender", func(t *testing.T) {
		tr.ResetCalls()
		reply, err := a.Handle(context.Background(), 1, "ban")
		require.NoError(t, err)
		assert.Contains(t, reply, "removed")
		require.Len(t, tr.RemoveParticipantCalls(), 1)
		assert.Equal(t, "room1", tr.RemoveParticipantCalls()[0].RoomID)
		assert.Equal(t, "user1", tr.RemoveParticipantCalls()[0].UserID)
		assert.Equal(t, "ban", ledger.responses[1])
	})

	t.Run("mute acknowledged without action", func(t *testing.T) {
		tr.ResetCalls()
		reply, err := a.Handle(context.Background(), 1, "mute")
		require.NoError(t, err)
		assert.Contains(t, reply, "no action taken")
		assert.Empty(t, tr.RemoveParticipantCalls())
		assert.Equal(t, "mute", ledger.responses[1])
	})

	t.Run("unknown text returns the usage hint, no mutation", func(t *testing.T) {
		tr.ResetCalls()
		before := ledger.responses[1]
		reply, err := a.Handle(context.Background(), 1, "what is this")
		require.NoError(t, err)
		assert.Equal(t, adminUsageHint, reply)
		assert.Equal(t, before, ledger.responses[1], "ledger untouched on unknown disposition")
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := a.Handle(context.Background(), 999, "ban")
		assert.Error(t, err)
	})
}

func TestAdmin_HandleDryMode(t *testing.T) {
	ledger := &mockLedger{}
	ledger.entries = append(ledger.entries, storage.ModLogEntry{Room: "room1", Sender: "user1"})

	tr := &TransportMock{
		RemoveParticipantFunc: func(ctx context.Context, roomID, userID string) error {
			t.Fatal("dry mode must not remove")
			return nil
		},
	}
	a := &admin{transport: tr, modLog: ledger, dry: true}

	reply, err := a.Handle(context.Background(), 1, "ban")
	require.NoError(t, err)
	assert.Contains(t, reply, "dry mode")
	assert.Equal(t, "ban", ledger.responses[1], "disposition recorded even in dry mode")
}

func TestAdmin_HandleRemoveFailure(t *testing.T) {
	ledger := &mockLedger{}
	ledger.entries = append(ledger.entries, storage.ModLogEntry{Room: "room1", Sender: "user1"})

	tr := &TransportMock{
		RemoveParticipantFunc: func(ctx context.Context, roomID, userID string) error { return assert.AnError },
	}
	a := &admin{transport: tr, modLog: ledger}

	_, err := a.Handle(context.Background(), 1, "ban")
	assert.Error(t, err)
	assert.Equal(t, "ban", ledger.responses[1], "disposition recorded despite the failed removal")
}
