package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls", "calls.json")

	lg := New(path)
	lg.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, lg.Append("ingest_started", map[string]any{"source": "twitch-chat", "channel": "chan"}))
	require.NoError(t, lg.Append("ingest_completed", map[string]any{"source": "twitch-chat", "count": 3}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)

	assert.Equal(t, "ingest_started", entries[0]["event"])
	assert.Equal(t, "chan", entries[0]["channel"])
	assert.EqualValues(t, 1700000000, entries[0]["timestamp"])
	assert.Equal(t, "ingest_completed", entries[1]["event"])
	assert.Equal(t, lg.RunID(), entries[0]["run_id"])
	assert.Equal(t, entries[0]["run_id"], entries[1]["run_id"])
}

func TestAppendAccumulatesAcrossLoggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.json")

	require.NoError(t, New(path).Append("ingest_started", nil))
	require.NoError(t, New(path).Append("ingest_started", nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, len(splitLines(data)))
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	return lines
}
