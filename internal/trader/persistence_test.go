package trader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaySkipsTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	store, err := NewFileEventStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(EventEnvelope{ID: "a", Type: EvtPlaceOrder}))
	require.NoError(t, store.Append(EventEnvelope{ID: "b", Type: EvtCancelOrder}))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Append(EventEnvelope{ID: "c"}), os.ErrClosed)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"ID":"torn","Ty`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var ids []string
	require.NoError(t, ReplayEventFile(path, func(evt EventEnvelope) error {
		ids = append(ids, evt.ID)
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestReplayRejectsCorruptMiddle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"ID\":\"a\"}\nnot json\n{\"ID\":\"b\"}\n"), 0o644))
	err := ReplayEventFile(path, func(EventEnvelope) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events.jsonl:2")
}

func TestFileEventStoreLoadEvents(t *testing.T) {
	store, err := NewFileEventStore(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(EventEnvelope{ID: id, Type: EvtPlaceOrder, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	ctx := context.Background()

	all, err := store.LoadEvents(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	later, err := store.LoadEvents(ctx, base, 1)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "b", later[0].ID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.LoadEvents(cancelled, time.Time{}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
