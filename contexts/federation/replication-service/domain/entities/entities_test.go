package entities

import (
	"errors"
	"testing"
	"time"

	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSenderDescriptorDefaultsHandle(t *testing.T) {
	sender, err := NewSenderDescriptor("", "alice", " Remote.Example ")
	require.NoError(t, err)
	assert.Equal(t, "alice@remote.example", sender.Handle)
	assert.Equal(t, "remote.example", sender.Domain)

	sender, err = NewSenderDescriptor("@alice@remote.example", "alice", "remote.example")
	require.NoError(t, err)
	assert.Equal(t, "@alice@remote.example", sender.Handle)

	_, err = NewSenderDescriptor("", "", "remote.example")
	assert.True(t, errors.Is(err, domainerrors.ErrMalformedPayload))
}

func TestNewMirrorMessageDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := map[string]any{"w": 10}
	message := NewMirrorMessage("m-1", Channel{ChannelID: "c-1"}, "src-1", SenderDescriptor{Username: "alice"}, MessageAttrs{
		Content:       "hi",
		MediaMetadata: meta,
	}, now)

	assert.Equal(t, DefaultMessageType, message.MessageType)
	assert.Equal(t, now, message.SentAt)
	assert.True(t, message.IsFederatedMirror)
	assert.Equal(t, "c-1", message.ChannelID)

	meta["w"] = 99
	assert.Equal(t, 10, message.MediaMetadata["w"])
}

func TestMessageAttrsNeedContentOrMedia(t *testing.T) {
	assert.Error(t, MessageAttrs{}.Validate())
	assert.NoError(t, MessageAttrs{MediaURLs: []string{"https://cdn.example/a.png"}}.Validate())
}

func TestServerAttrsValidate(t *testing.T) {
	assert.NoError(t, ServerAttrs{Name: "Lounge"}.Validate())
	assert.Error(t, ServerAttrs{Name: " "}.Validate())
	assert.Error(t, ServerAttrs{Name: "Lounge", MemberCount: -1}.Validate())
}

func TestServerStreamIdentity(t *testing.T) {
	local := Server{ServerID: "local-1"}
	assert.Equal(t, "server:local-1", local.StreamID())

	mirror := Server{ServerID: "row-9", IsFederatedMirror: true, FederationID: "srv-1"}
	assert.Equal(t, "server:srv-1", mirror.StreamID())

	id, ok := FederationIDFromStream("server:srv-1")
	assert.True(t, ok)
	assert.Equal(t, "srv-1", id)
	_, ok = FederationIDFromStream("channel:c-1")
	assert.False(t, ok)
	_, ok = FederationIDFromStream("server:")
	assert.False(t, ok)
}

func TestEventValidateStreamMustMatchServer(t *testing.T) {
	event := Event{
		EventID:      "evt-1",
		OriginDomain: "remote.example",
		StreamID:     "server:srv-1",
		Sequence:     1,
		Payload:      ServerRemove{FederationID: "srv-2"},
	}
	assert.True(t, errors.Is(event.Validate(), domainerrors.ErrMalformedPayload))

	event.Payload = ServerRemove{FederationID: "srv-1"}
	assert.NoError(t, event.Validate())

	event.StreamID = "custom-stream"
	assert.NoError(t, event.Validate())
}

func TestCursorAdvanceResetsSeenSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cursor := SequenceCursor{LastAppliedSequence: 3, SeenEventIDs: []string{"e3"}}
	next := cursor.Advance(4, "e4", now)

	assert.Equal(t, int64(4), next.LastAppliedSequence)
	assert.Equal(t, []string{"e4"}, next.SeenEventIDs)
	assert.True(t, next.HasSeen("e4"))
	assert.False(t, next.HasSeen("e3"))
	assert.Equal(t, []string{"e3"}, cursor.SeenEventIDs)
}

func TestPeerSigningKey(t *testing.T) {
	peer := Peer{Keys: []PeerKey{{ID: "only", Secret: "s"}}}
	key, ok := peer.SigningKey()
	require.True(t, ok)
	assert.Equal(t, "only", key.ID)

	peer = Peer{ActiveKeyID: "k1", Keys: []PeerKey{{ID: "k0", Secret: "a"}, {ID: "k1", Secret: "b"}}}
	key, ok = peer.SigningKey()
	require.True(t, ok)
	assert.Equal(t, "b", key.Secret)

	peer.ActiveKeyID = ""
	_, ok = peer.SigningKey()
	assert.False(t, ok)
}
