package badger

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sentinel/internal/core/domain"
)

func TestSnapshotArchive_RoundTrip(t *testing.T) {
	a, err := OpenInMemory()
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	got, err := a.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	history := []domain.Snapshot{
		{ID: "s1", Timestamp: ts, States: map[string][]byte{"knowledge": []byte("k1")}},
		{ID: "s2", Timestamp: ts.Add(time.Minute), States: map[string][]byte{"knowledge": []byte("k2")}},
	}
	require.NoError(t, a.Store(ctx, history))

	got, err = a.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(history, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, a.Store(ctx, history[:1]))
	got, err = a.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSnapshotArchive_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := Open(dir)
	require.NoError(t, err)
	history := []domain.Snapshot{{ID: "s1", Timestamp: time.Unix(10, 0).UTC(), States: map[string][]byte{"m": []byte("x")}}}
	require.NoError(t, a.Store(ctx, history))
	require.NoError(t, a.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(history, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}
