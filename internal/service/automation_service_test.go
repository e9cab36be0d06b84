package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Geotechcompany/synovora/internal/models"
	"github.com/Geotechcompany/synovora/internal/repository"
	"github.com/Geotechcompany/synovora/internal/transfer"
)

func TestDueNeverRan(t *testing.T) {
	assert.True(t, Due(models.FrequencyDaily, nil, time.Now()))
	assert.True(t, Due(models.FrequencyWeekly, nil, time.Now()))
}

func TestDueDaily(t *testing.T) {
	now := time.Now().UTC()

	recent := now.Add(-20 * time.Hour)
	assert.False(t, Due(models.FrequencyDaily, &recent, now))

	boundary := now.Add(-23 * time.Hour)
	assert.True(t, Due(models.FrequencyDaily, &boundary, now))

	old := now.Add(-24 * time.Hour)
	assert.True(t, Due(models.FrequencyDaily, &old, now))
}

func TestDueWeekly(t *testing.T) {
	now := time.Now().UTC()

	recent := now.Add(-6 * 24 * time.Hour)
	assert.False(t, Due(models.FrequencyWeekly, &recent, now))

	old := now.Add(-8 * 24 * time.Hour)
	assert.True(t, Due(models.FrequencyWeekly, &old, now))
}

type memLogRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []*models.AutomationLog
}

func newMemLogRepo() *memLogRepo {
	return &memLogRepo{nextID: 1}
}

func (r *memLogRepo) Append(_ context.Context, entry *models.AutomationLog) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *entry
	c.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, &c)
	return c.ID, nil
}

func (r *memLogRepo) ListByUser(_ context.Context, userID string, limit int) ([]*models.AutomationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AutomationLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID != userID {
			continue
		}
		c := *r.entries[i]
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memLogRepo) Prune(_ context.Context, userID string, keep int) error {
	return nil
}

// stubPostService satisfies PostService for runner tests; only the methods
// the automation runner touches do real work.
type stubPostService struct {
	mu          sync.Mutex
	generated   []string
	published   []int64
	generateErr map[string]error
	nextID      int64
}

func newStubPostService() *stubPostService {
	return &stubPostService{generateErr: map[string]error{}, nextID: 1}
}

func (s *stubPostService) Generate(_ context.Context, userID string, pg *transfer.PostGeneration) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.generateErr[userID]; err != nil {
		return nil, err
	}
	s.generated = append(s.generated, userID)
	post := &models.Post{ID: s.nextID, OwnerID: userID, Topic: pg.Topic, Status: models.PostStatusDraft}
	s.nextID++
	return post, nil
}

func (s *stubPostService) PublishNow(_ context.Context, _ string, postID int64, _ string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, postID)
	return &models.Post{ID: postID, Status: models.PostStatusPublished}, nil
}

func (s *stubPostService) SuggestTopics(context.Context, string, *transfer.TopicSuggestion) ([]string, error) {
	return []string{"Pricing strategy mistakes", "Client onboarding systems", "Niche positioning"}, nil
}

func (s *stubPostService) PostInfo(context.Context, string, int64) (*models.Post, error) {
	return nil, nil
}
func (s *stubPostService) List(context.Context, string, string) ([]*models.Post, error) {
	return nil, nil
}
func (s *stubPostService) Update(context.Context, string, int64, *transfer.PostUpdate) (*models.Post, error) {
	return nil, nil
}
func (s *stubPostService) Remove(context.Context, string, int64) error { return nil }
func (s *stubPostService) Schedule(context.Context, string, int64, *transfer.PostSchedule) (*models.Post, error) {
	return nil, nil
}
func (s *stubPostService) Unschedule(context.Context, string, int64) (*models.Post, error) {
	return nil, nil
}
func (s *stubPostService) PublishClaimed(context.Context, *models.Post) (*models.Post, error) {
	return nil, nil
}
func (s *stubPostService) Email(context.Context, string, int64, *transfer.PostEmail) error {
	return nil
}

func seedAutomationUser(t *testing.T, users *memUserRepo, id string, lastRun *time.Time) {
	t.Helper()
	enabled := true
	occupation := "freelance designer"
	_, err := users.Upsert(context.Background(), id, repository.UserPatch{
		AutomationEnabled: &enabled,
		Occupation:        &occupation,
	})
	require.NoError(t, err)
	if lastRun != nil {
		require.NoError(t, users.SetLastAutoRun(context.Background(), id, *lastRun))
	}
}

func TestRunOnceProcessesDueUser(t *testing.T) {
	users := newMemUserRepo()
	logs := newMemLogRepo()
	posts := newStubPostService()
	svc := NewAutomationService(testConfig(), users, logs, posts)

	seedAutomationUser(t, users, "user-1", nil)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UsersProcessed)
	assert.Equal(t, 1, summary.PostsCreated)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, []string{"user-1"}, posts.generated)

	user, err := users.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, user.LastAutoRunAt)

	entries, err := logs.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AutomationOutcomeSuccess, entries[0].Outcome)
}

func TestRunOnceSkipsRecentRun(t *testing.T) {
	users := newMemUserRepo()
	logs := newMemLogRepo()
	posts := newStubPostService()
	svc := NewAutomationService(testConfig(), users, logs, posts)

	recent := time.Now().UTC().Add(-2 * time.Hour)
	seedAutomationUser(t, users, "user-1", &recent)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.UsersProcessed)
	assert.Empty(t, posts.generated)

	// The withheld run still leaves a skipped log row.
	entries, err := logs.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AutomationOutcomeSkipped, entries[0].Outcome)
	assert.Equal(t, 0, entries[0].ItemsCreated)
	assert.Contains(t, entries[0].ErrorMessage, "daily limit")
}

func TestRunOnceRecordsWeeklySkip(t *testing.T) {
	users := newMemUserRepo()
	logs := newMemLogRepo()
	posts := newStubPostService()
	svc := NewAutomationService(testConfig(), users, logs, posts)

	recent := time.Now().UTC().Add(-3 * 24 * time.Hour)
	seedAutomationUser(t, users, "user-1", &recent)
	weekly := models.FrequencyWeekly
	_, err := users.Upsert(context.Background(), "user-1", repository.UserPatch{Frequency: &weekly})
	require.NoError(t, err)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.UsersProcessed)
	assert.Empty(t, posts.generated)

	entries, err := logs.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AutomationOutcomeSkipped, entries[0].Outcome)
	assert.Contains(t, entries[0].ErrorMessage, "weekly limit")
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	users := newMemUserRepo()
	logs := newMemLogRepo()
	posts := newStubPostService()
	posts.generateErr["user-bad"] = errors.New("all configured providers failed: quota")

	config := testConfig()
	config.AutomationMaxUsersPerRun = 5
	svc := NewAutomationService(config, users, logs, posts)

	seedAutomationUser(t, users, "user-bad", nil)
	seedAutomationUser(t, users, "user-good", nil)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.UsersProcessed)
	assert.Equal(t, 1, summary.PostsCreated)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "user-bad", summary.Errors[0].UserID)

	// The failed user keeps a nil last run so the next cycle retries.
	bad, err := users.GetByID(context.Background(), "user-bad")
	require.NoError(t, err)
	assert.Nil(t, bad.LastAutoRunAt)

	good, err := users.GetByID(context.Background(), "user-good")
	require.NoError(t, err)
	assert.NotNil(t, good.LastAutoRunAt)
}

func TestRunOnceHonoursUserCap(t *testing.T) {
	users := newMemUserRepo()
	logs := newMemLogRepo()
	posts := newStubPostService()
	svc := NewAutomationService(testConfig(), users, logs, posts)

	seedAutomationUser(t, users, "user-1", nil)
	seedAutomationUser(t, users, "user-2", nil)
	seedAutomationUser(t, users, "user-3", nil)

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UsersProcessed)
}

func TestUpdateSettingsRequiresOccupation(t *testing.T) {
	users := newMemUserRepo()
	svc := NewAutomationService(testConfig(), users, newMemLogRepo(), newStubPostService())

	enabled := true
	_, err := svc.UpdateSettings(context.Background(), "user-1", &transfer.AutomationPatch{Enabled: &enabled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "occupation")

	occupation := "fractional CFO"
	settings, err := svc.UpdateSettings(context.Background(), "user-1", &transfer.AutomationPatch{
		Enabled:    &enabled,
		Occupation: &occupation,
	})
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, occupation, settings.Occupation)
}

func TestUpdateSettingsRejectsBadFrequency(t *testing.T) {
	svc := NewAutomationService(testConfig(), newMemUserRepo(), newMemLogRepo(), newStubPostService())

	hourly := "hourly"
	_, err := svc.UpdateSettings(context.Background(), "user-1", &transfer.AutomationPatch{Frequency: &hourly})
	require.Error(t, err)
}

func TestUpdateSettingsResetSchedule(t *testing.T) {
	users := newMemUserRepo()
	svc := NewAutomationService(testConfig(), users, newMemLogRepo(), newStubPostService())

	past := time.Now().UTC().Add(-time.Hour)
	seedAutomationUser(t, users, "user-1", &past)

	settings, err := svc.UpdateSettings(context.Background(), "user-1", &transfer.AutomationPatch{ResetSchedule: true})
	require.NoError(t, err)
	assert.Nil(t, settings.LastRunAt)
}
