package writer

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill/msgingest/internal/message"
)

func TestSanitizePathComponent(t *testing.T) {
	assert.Equal(t, "conversation_id_123_456", SanitizePathComponent("conversation_id:123/456"))
	assert.Equal(t, "plain-name_1.2", SanitizePathComponent("plain-name_1.2"))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("logs", "ingest", "twitter_42.json"),
		DefaultPath(filepath.Join("logs", "ingest"), message.PlatformTwitter, "42"))
	assert.Equal(t,
		filepath.Join("logs", "ingest", "twitch_somechannel.jsonl"),
		DefaultPath(filepath.Join("logs", "ingest"), message.PlatformTwitch, "somechannel"))
}

func TestWriteDocumentCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ingest", "twitter_42.json")

	doc := map[string]any{"meta": map[string]any{"conversation_id": "42"}}
	require.NoError(t, WriteDocument(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "42", parsed["meta"].(map[string]any)["conversation_id"])
}

func TestWriteDocumentOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, WriteDocument(path, map[string]string{"run": "first"}))
	require.NoError(t, WriteDocument(path, map[string]string{"run": "second"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestWriteDocumentNullReplies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc := struct {
		Replies []message.Row `json:"replies"`
	}{Replies: nil}
	require.NoError(t, WriteDocument(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"replies": null`)
}

func TestStreamWriterAppendsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twitch_chan.jsonl")

	sw, err := OpenStream(path)
	require.NoError(t, err)

	rows := []message.Row{
		{Platform: "twitch", Scope: "channel:chan", MessageID: "1", Username: "a", SentAtUTC: "2024-03-01T12:00:00Z", CapturedAtUTC: "2024-03-01T12:00:00Z", Text: "one"},
		{Platform: "twitch", Scope: "channel:chan", MessageID: "2", Username: "b", SentAtUTC: "2024-03-01T12:00:01Z", CapturedAtUTC: "2024-03-01T12:00:01Z", Text: ""},
	}
	for _, row := range rows {
		require.NoError(t, sw.Append(row))
	}
	assert.Equal(t, 2, sw.Count())
	require.NoError(t, sw.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines int
	for scanner.Scan() {
		lines++
		var row map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		assert.NotEmpty(t, row["username"])
		assert.NotEmpty(t, row["sent_at_utc"])
		_, hasText := row["text"]
		assert.True(t, hasText, "text field must be present even when empty")
	}
	assert.Equal(t, 2, lines)
}

func TestStreamWriterEmptyCaptureLeavesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twitch_quiet.jsonl")

	sw, err := OpenStream(path)
	require.NoError(t, err)
	require.NoError(t, sw.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestStreamWriterTruncatesPriorRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twitch_chan.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0o644))

	sw, err := OpenStream(path)
	require.NoError(t, err)
	require.NoError(t, sw.Append(message.Row{Username: "a", Text: "fresh"}))
	require.NoError(t, sw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
	assert.Contains(t, string(data), "fresh")
}
