package v1

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSchema(t *testing.T, name string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "schemas", "v1", name))
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema), name)
	return schema
}

func jsonFields(value any) map[string]bool {
	fields := map[string]bool{}
	typ := reflect.TypeOf(value)
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			fields[name] = true
		}
	}
	return fields
}

func schemaProperties(t *testing.T, schema map[string]any) map[string]any {
	t.Helper()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties")
	return props
}

func TestEventSchemaMatchesWireType(t *testing.T) {
	schema := loadSchema(t, "federation_event.json")
	fields := jsonFields(Event{})
	for name := range schemaProperties(t, schema) {
		assert.True(t, fields[name], "schema property %q missing from Event", name)
	}
	for name := range fields {
		assert.Contains(t, schemaProperties(t, schema), name)
	}

	defs := schema["$defs"].(map[string]any)
	for defName, wire := range map[string]any{
		"server":  ServerData{},
		"channel": ChannelData{},
		"message": MessageData{},
	} {
		wireFields := jsonFields(wire)
		for name := range schemaProperties(t, defs[defName].(map[string]any)) {
			assert.True(t, wireFields[name], "schema %s property %q missing from wire type", defName, name)
		}
	}
}

func TestSnapshotSchemaMatchesWireType(t *testing.T) {
	schema := loadSchema(t, "federation_server_snapshot.json")
	fields := jsonFields(ServerSnapshot{})
	for name := range schemaProperties(t, schema) {
		assert.True(t, fields[name], "schema property %q missing from ServerSnapshot", name)
	}
}

func TestEventArtifactsAreValidJSON(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("..", "..", "..", "events", "v1", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var payload any
		assert.NoError(t, json.Unmarshal(data, &payload), path)
	}
}

func TestServerSnapshotPathEscapesID(t *testing.T) {
	assert.Equal(t, "/federation/v1/servers/srv-1/snapshot", ServerSnapshotPath("srv-1"))
	assert.Equal(t, "/federation/v1/servers/a%2Fb/snapshot", ServerSnapshotPath("a/b"))
}

func TestSnapshotEnvelopeMatchesSnapshotFields(t *testing.T) {
	assert.Equal(t, jsonFields(ServerSnapshot{}), jsonFields(SnapshotEnvelope{}))
}

func TestDecodeSnapshotEnvelopeKeepsBadlyTypedItemsRaw(t *testing.T) {
	envelope, err := DecodeSnapshotEnvelope([]byte(`{
		"version": 1,
		"server": {"id": "srv-1", "name": "Remote"},
		"channels": [{"id": "chan-1", "name": "general"}, {"id": 7}],
		"messages": [{"id": "msg-1", "channel_id": "chan-1", "content": 42}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "srv-1", envelope.Server.ID)
	require.Len(t, envelope.Channels, 2)
	require.Len(t, envelope.Messages, 1)

	var message MessageData
	assert.Error(t, json.Unmarshal(envelope.Messages[0], &message))

	_, err = DecodeSnapshotEnvelope([]byte(`{"version": 1, "server": {"id": 5}}`))
	assert.Error(t, err)
}

func TestServerSnapshotEnvelope(t *testing.T) {
	envelope, err := ServerSnapshot{
		Version:  SnapshotVersion,
		Server:   ServerData{ID: "srv-1", Name: "Remote"},
		Channels: []ChannelData{{ID: "chan-1", Name: "general"}},
		Stream:   &StreamPointer{ID: "server:srv-1", Sequence: 4},
	}.Envelope()
	require.NoError(t, err)
	require.Len(t, envelope.Channels, 1)
	assert.Empty(t, envelope.Messages)

	var channel ChannelData
	require.NoError(t, json.Unmarshal(envelope.Channels[0], &channel))
	assert.Equal(t, ChannelData{ID: "chan-1", Name: "general"}, channel)
	assert.Equal(t, int64(4), envelope.Stream.Sequence)
}
