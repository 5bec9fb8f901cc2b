package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage"
)

func seed(t *testing.T, r *AlertRepo, base time.Time) {
	t.Helper()
	alerts := []domain.Alert{
		{ID: "a1", Node: "node1", Kind: domain.AlertKindLatency, Timestamp: base},
		{ID: "a2", Node: "node2", Kind: domain.AlertKindErrorRate, Timestamp: base.Add(time.Minute)},
		{ID: "a3", Node: "node1", Kind: domain.AlertKindUnhealthy, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, a := range alerts {
		require.NoError(t, r.Save(context.Background(), a))
	}
}

func ids(alerts []domain.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}

func TestAlertRepo_List(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewAlertRepo()
	seed(t, r, base)

	all, err := r.List(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a2", "a1"}, ids(all))

	byNode, _ := r.List(ctx, storage.AlertFilter{Node: "node1"})
	assert.Equal(t, []string{"a3", "a1"}, ids(byNode))

	byKind, _ := r.List(ctx, storage.AlertFilter{Kind: domain.AlertKindErrorRate})
	assert.Equal(t, []string{"a2"}, ids(byKind))

	limited, _ := r.List(ctx, storage.AlertFilter{Limit: 2})
	assert.Equal(t, []string{"a3", "a2"}, ids(limited))

	since, _ := r.List(ctx, storage.AlertFilter{Since: base.Add(time.Minute)})
	assert.Equal(t, []string{"a3", "a2"}, ids(since))
}

func TestAlertRepo_SetExplanation(t *testing.T) {
	ctx := context.Background()
	r := NewAlertRepo()
	seed(t, r, time.Now())

	require.NoError(t, r.SetExplanation(ctx, "a2", "node2 is overloaded"))
	got, err := r.Get(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, "node2 is overloaded", got.Explanation)

	assert.ErrorIs(t, r.SetExplanation(ctx, "missing", "x"), storage.ErrAlertNotFound)
	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrAlertNotFound)
}

func TestAlertRepo_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewAlertRepo()
	seed(t, r, base)

	n, err := r.DeleteOlderThan(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, _ := r.List(ctx, storage.AlertFilter{})
	assert.Equal(t, []string{"a3"}, ids(all))

	// index is rebuilt after compaction
	require.NoError(t, r.SetExplanation(ctx, "a3", "ok"))
	got, _ := r.Get(ctx, "a3")
	assert.Equal(t, "ok", got.Explanation)
}

func TestAlertLog_PublishAndAnnotate(t *testing.T) {
	ctx := context.Background()
	r := NewAlertRepo()
	log := storage.NewAlertLog(r)

	require.NoError(t, log.Publish(ctx, domain.Alert{ID: "x", Node: "node1", Timestamp: time.Now()}))
	require.NoError(t, log.Annotate(ctx, "x", "cause"))

	got, err := r.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "cause", got.Explanation)
}
