package peers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePeersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peers.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writePeersFile(t, `{"peers":[
		{"domain":"Beta.Example","base_url":"https://beta.example/","active_key_id":"k2",
		 "keys":[{"id":"k1","secret":"old"},{"id":"k2","secret":"new"}]},
		{"domain":"alpha.example","base_url":"https://alpha.example","keys":[{"id":"k1","secret":"s"}]}
	]}`)

	directory, err := LoadFile(path)
	require.NoError(t, err)

	peer, err := directory.PeerByDomain(context.Background(), "BETA.example")
	require.NoError(t, err)
	assert.Equal(t, "beta.example", peer.Domain)
	assert.Equal(t, "https://beta.example", peer.BaseURL)
	key, ok := peer.SigningKey()
	require.True(t, ok)
	assert.Equal(t, "new", key.Secret)
	old, ok := peer.KeyByID("k1")
	require.True(t, ok)
	assert.Equal(t, "old", old.Secret)

	listed, err := directory.ListPeers(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "alpha.example", listed[0].Domain)

	_, err = directory.PeerByDomain(context.Background(), "gamma.example")
	require.ErrorIs(t, err, domainerrors.ErrPeerUnknown)
}

func TestLoadFileEmptyPath(t *testing.T) {
	directory, err := LoadFile("  ")
	require.NoError(t, err)
	listed, err := directory.ListPeers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = LoadFile(writePeersFile(t, `{"peers":`))
	require.ErrorContains(t, err, "parse peers file")
}

func TestNewDirectoryValidation(t *testing.T) {
	key := []entities.PeerKey{{ID: "k1", Secret: "s"}}
	cases := []struct {
		name  string
		peers []entities.Peer
		want  string
	}{
		{name: "missing domain", peers: []entities.Peer{{Keys: key}}, want: "domain is required"},
		{name: "duplicate domain", peers: []entities.Peer{{Domain: "a.example", Keys: key}, {Domain: "A.example", Keys: key}}, want: "configured twice"},
		{name: "key without secret", peers: []entities.Peer{{Domain: "a.example", Keys: []entities.PeerKey{{ID: "k1"}}}}, want: "without id or secret"},
		{name: "duplicate key id", peers: []entities.Peer{{Domain: "a.example", Keys: []entities.PeerKey{{ID: "k1", Secret: "x"}, {ID: "k1", Secret: "y"}}}}, want: "key k1 configured twice"},
		{name: "unknown active key", peers: []entities.Peer{{Domain: "a.example", ActiveKeyID: "k9", Keys: key}}, want: "active key k9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDirectory(tc.peers)
			require.ErrorContains(t, err, tc.want)
		})
	}
}
