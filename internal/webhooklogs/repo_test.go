package webhooklogs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/angelmondragon/schoolpay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
)

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	entry := &models.WebhookLog{Payload: datatypes.JSON(`{"status":200}`), Status: 200}
	require.NoError(t, repo.Create(ctx, entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, models.UnknownOrderID, entry.OrderID)
	assert.False(t, entry.ReceivedAt.IsZero())

	logs, err := repo.List(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Processed)
	assert.JSONEq(t, `{"status":200}`, string(logs[0].Payload))
}

func TestMarkResult(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	entry := &models.WebhookLog{OrderID: "ORD_1", Payload: datatypes.JSON(`{}`)}
	require.NoError(t, repo.Create(ctx, entry))

	at := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkResult(ctx, entry.ID, Result{Processed: true, ProcessedAt: at}))

	logs, err := repo.List(ctx, ListQuery{OrderID: "ORD_1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Processed)
	require.NotNil(t, logs[0].ProcessedAt)
	assert.True(t, at.Equal(*logs[0].ProcessedAt))

	err = repo.MarkResult(ctx, uuid.New(), Result{Processed: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	base := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"ORD_a", "ORD_b", "ORD_a"} {
		require.NoError(t, repo.Create(ctx, &models.WebhookLog{
			OrderID:    id,
			Payload:    datatypes.JSON(`{}`),
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
			Processed:  id == "ORD_b",
		}))
	}

	logs, err := repo.List(ctx, ListQuery{OrderID: "ORD_a"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].ReceivedAt.After(logs[1].ReceivedAt))

	pending, err := repo.List(ctx, ListQuery{Unprocessed: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ORD_a", pending[0].OrderID)
}

func TestFindUnprocessedBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	old := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.WebhookLog{
		{OrderID: "ORD_old_done", ReceivedAt: old, Processed: true},
		{OrderID: "ORD_old_failed", ReceivedAt: old},
		{OrderID: "ORD_older_failed", ReceivedAt: old.Add(-time.Hour)},
		{OrderID: "ORD_recent_failed", ReceivedAt: recent},
	}
	for i := range rows {
		rows[i].Payload = datatypes.JSON(`{}`)
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	logs, total, err := repo.FindUnprocessedBefore(ctx, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "ORD_older_failed", logs[0].OrderID)

	all, err := repo.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
