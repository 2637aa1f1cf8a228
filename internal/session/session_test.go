package session

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	s := New("make a red cube")
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.Closed())

	s.AddToolCall("create_primitive", map[string]interface{}{"shape": "cube"}, true, "Created Cube")
	s.AddToolCall("set_material_color", nil, false, "material not found")
	s.AddMessage("assistant", "done")
	s.AddError("validator", nil)
	s.CountLLMCall(120, 40)

	s.Close("completed", "Created a red cube.")
	assert.True(t, s.Closed())
	assert.Equal(t, "completed", s.Outcome)

	// Close is idempotent.
	first := *s.EndedAt
	s.Close("failed", "other")
	assert.Equal(t, first, *s.EndedAt)
	assert.Equal(t, "completed", s.Outcome)

	snap := s.Snapshot()
	assert.Len(t, snap.Actions, 4)
	assert.Equal(t, 2, snap.Metrics.ToolCalls)
	assert.Equal(t, 1, snap.Metrics.ToolFailures)
	assert.Equal(t, 1, snap.Metrics.LLMCalls)
	assert.Equal(t, 120, snap.Metrics.InputTokens)
}

func TestActionTruncation(t *testing.T) {
	s := New("req")
	s.AddToolCall("x", nil, true, strings.Repeat("a", 5000))
	s.AddMessage("assistant", strings.Repeat("b", 5000))
	s.AddError("stage", assert.AnError)

	snap := s.Snapshot()
	assert.Len(t, snap.Actions[0].Detail, maxToolDetail)
	assert.Len(t, snap.Actions[1].Detail, maxMessageDetail)
	assert.True(t, strings.HasSuffix(snap.Actions[0].Detail, "..."))
}

// Appends from concurrent callbacks must serialize cleanly.
func TestConcurrentAppends(t *testing.T) {
	s := New("req")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddToolCall("t", nil, true, "ok")
			s.AddMessage("assistant", "m")
		}()
	}
	wg.Wait()
	assert.Len(t, s.Snapshot().Actions, 100)
	assert.Equal(t, 50, s.Snapshot().Metrics.ToolCalls)
}

func TestStoreSaveAndGet(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	s := New("build a snowman")
	s.AddToolCall("create_primitive", map[string]interface{}{"shape": "sphere"}, true, "ok")
	s.Close("completed", "Snowman built.")

	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "build a snowman", loaded.UserRequest)
	assert.Equal(t, "completed", loaded.Outcome)
	require.Len(t, loaded.Actions, 1)
	assert.Equal(t, "create_primitive", loaded.Actions[0].Tool)
	require.NotNil(t, loaded.EndedAt)

	// Saving again updates in place.
	require.NoError(t, store.Save(ctx, s))
	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, s.ID, list[0].ID)
}

// The embedded schema opens with a comment line; migration must still
// produce the table, and reopening the same file must be a no-op.
func TestStoreMigratesCommentedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := OpenStore(path)
	require.NoError(t, err)

	sums, err := store.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, sums)
	require.NoError(t, store.Close())

	store, err = OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestStoreGetMissing(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMetricsWriterAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	w, err := NewMetricsWriter(path)
	require.NoError(t, err)

	for _, outcome := range []string{"completed", "failed"} {
		s := New("req")
		s.AddToolCall("t", nil, outcome == "completed", "x")
		s.Close(outcome, "")
		w.RecordTurn(s)
	}
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "completed", lines[0]["outcome"])
	assert.Equal(t, "failed", lines[1]["outcome"])
	assert.Equal(t, 1.0, lines[0]["tool_calls"])
	assert.NotEmpty(t, lines[0]["session_id"])
}
