package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Geotechcompany/synovora/internal/models"
)

func TestFileStorePostLifecycle(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	id, err := store.Create(context.Background(), &models.Post{
		OwnerID:             "user-1",
		Topic:               "Client retention",
		Content:             "Keep clients by over-communicating.",
		Status:              models.PostStatusDraft,
		ScheduledVisibility: models.VisibilityPublic,
	})
	require.NoError(t, err)

	post, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, models.PostStatusDraft, post.Status)

	scheduled := models.PostStatusScheduled
	due := time.Now().UTC().Add(-time.Minute)
	_, err = store.Update(context.Background(), id, PostPatch{
		Status:       &scheduled,
		ScheduledFor: &due,
	})
	require.NoError(t, err)

	duePosts, err := store.ListDue(context.Background(), time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, duePosts, 1)

	require.NoError(t, store.Remove(context.Background(), id))
	gone, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestFileStoreRejectsConditionalUpdates(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.False(t, store.ConditionalUpdates())

	_, err = store.UpdateIfStatus(context.Background(), 1, models.PostStatusScheduled, PostPatch{})
	assert.ErrorIs(t, err, ErrConditionalUnsupported)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	id, err := store.Create(context.Background(), &models.Post{
		OwnerID: "user-1",
		Topic:   "Deep work blocks",
		Status:  models.PostStatusDraft,
	})
	require.NoError(t, err)

	enabled := true
	occupation := "data engineer"
	_, err = store.UpsertUser(context.Background(), "user-1", UserPatch{
		AutomationEnabled: &enabled,
		Occupation:        &occupation,
	})
	require.NoError(t, err)

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	post, err := reopened.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "Deep work blocks", post.Topic)

	users, err := reopened.ListAutomationEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "user-1", users[0].ID)

	// IDs keep counting up after a reload.
	nextID, err := reopened.Create(context.Background(), &models.Post{OwnerID: "user-1", Status: models.PostStatusDraft})
	require.NoError(t, err)
	assert.Greater(t, nextID, id)
}

func TestFileStoreExcludesDisabledUsers(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	enabled := true
	disabled := false
	occupation := "copywriter"
	empty := ""

	_, err = store.UpsertUser(context.Background(), "active", UserPatch{AutomationEnabled: &enabled, Occupation: &occupation})
	require.NoError(t, err)
	_, err = store.UpsertUser(context.Background(), "switched-off", UserPatch{AutomationEnabled: &disabled, Occupation: &occupation})
	require.NoError(t, err)
	_, err = store.UpsertUser(context.Background(), "no-occupation", UserPatch{AutomationEnabled: &enabled, Occupation: &empty})
	require.NoError(t, err)

	users, err := store.ListAutomationEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "active", users[0].ID)
}

func TestFileStoreLogPruning(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		_, err := store.AppendLog(context.Background(), &models.AutomationLog{
			UserID:  "user-1",
			RunAt:   base.Add(time.Duration(i) * time.Minute),
			Outcome: models.AutomationOutcomeSuccess,
		})
		require.NoError(t, err)
	}

	require.NoError(t, store.PruneLogs(context.Background(), "user-1", 3))

	entries, err := store.ListLogsByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// The newest entries are the ones kept.
	assert.True(t, entries[0].RunAt.After(entries[2].RunAt))
}
