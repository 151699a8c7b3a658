package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gamestore-orders/internal/coordinator/sagalog"
)

func TestRepository_SaveAndRead(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "saga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, sagalog.NewEntry(ctx, "o-1", sagalog.StatusStarted, "", `{"userId":"U"}`, nil)))
	require.NoError(t, repo.Save(ctx, sagalog.NewEntry(ctx, "o-1", sagalog.StatusStepDone, "persist_order", "", nil)))
	require.NoError(t, repo.Save(ctx, sagalog.NewEntry(ctx, "o-1", sagalog.StatusFailed, "decrement_stock", "", []string{"insufficient stock"})))
	require.NoError(t, repo.Save(ctx, sagalog.NewEntry(ctx, "o-2", sagalog.StatusCompleted, "", "", nil)))

	latest, err := repo.GetLatest(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusFailed, latest.Status)
	assert.Equal(t, "decrement_stock", latest.CurrentStep)
	assert.JSONEq(t, `["insufficient stock"]`, latest.ErrorMessages)
	assert.Empty(t, latest.TraceID)

	history, err := repo.History(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, `{"userId":"U"}`, history[0].Payload)
	assert.Empty(t, history[1].Payload)

	failed, err := repo.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "o-1", failed[0].SagaID)

	_, err = repo.GetLatest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
