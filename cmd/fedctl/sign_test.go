package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	federationv1 "fedsync/contracts/gen/federation/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignCommandPrintsHeaders(t *testing.T) {
	bodyFile := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(bodyFile, []byte(`{"event_id":"evt-1"}`), 0o600))

	cmd := NewFedctlCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sign", "--domain", "Local.Example", "--key-id", "k1", "--secret", "s1", "--body-file", bodyFile})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, federationv1.HeaderDomain+": local.example", lines[0])
	assert.Equal(t, federationv1.HeaderKeyID+": k1", lines[1])
	assert.True(t, strings.HasPrefix(lines[3], federationv1.HeaderSignature+": "))
	assert.Len(t, strings.TrimPrefix(lines[3], federationv1.HeaderSignature+": "), 64)
}

func TestSignCommandRequiresSecret(t *testing.T) {
	cmd := NewFedctlCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"sign", "--domain", "local.example", "--key-id", "k1"})
	assert.Error(t, cmd.Execute())
}

func TestPublishRejectsUnknownType(t *testing.T) {
	cmd := NewFedctlCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"publish", "--server-id", "srv-1", "--type", "server.explode"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}
