package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/Geotechcompany/synovora/configs"
	"github.com/Geotechcompany/synovora/internal/models"
	"github.com/Geotechcompany/synovora/internal/repository"
	"github.com/Geotechcompany/synovora/internal/transfer"
)

type memPostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{nextID: 1, posts: map[int64]*models.Post{}}
}

func (r *memPostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *memPostRepo) List(_ context.Context, filter repository.PostFilter) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (r *memPostRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status != models.PostStatusScheduled || p.ScheduledFor == nil || p.ScheduledFor.After(now) {
			continue
		}
		c := *p
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memPostRepo) Create(_ context.Context, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *post
	c.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.posts[c.ID] = &c
	return c.ID, nil
}

func applyTestPatch(post *models.Post, patch repository.PostPatch) {
	if patch.Topic != nil {
		post.Topic = *patch.Topic
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.Status != nil {
		post.Status = *patch.Status
	}
	if patch.ScheduledFor != nil {
		post.ScheduledFor = patch.ScheduledFor
	} else if patch.ClearScheduledFor {
		post.ScheduledFor = nil
	}
	if patch.ScheduledVisibility != nil {
		post.ScheduledVisibility = *patch.ScheduledVisibility
	}
	if patch.LastPublishError != nil {
		post.LastPublishError = patch.LastPublishError
	} else if patch.ClearLastPublishError {
		post.LastPublishError = nil
	}
	if patch.PlatformPostID != nil {
		post.PlatformPostID = patch.PlatformPostID
	}
	if patch.PublishedAt != nil {
		post.PublishedAt = patch.PublishedAt
	}
	if patch.BumpAttempts {
		post.PublishAttempts++
	}
	post.UpdatedAt = time.Now().UTC()
}

func (r *memPostRepo) Update(_ context.Context, id int64, patch repository.PostPatch) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	applyTestPatch(post, patch)
	c := *post
	return &c, nil
}

func (r *memPostRepo) Remove(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func (r *memPostRepo) ConditionalUpdates() bool { return true }

func (r *memPostRepo) UpdateIfStatus(_ context.Context, id int64, expectedStatus string, patch repository.PostPatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != expectedStatus {
		return 0, nil
	}
	applyTestPatch(post, patch)
	return 1, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}}
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *memUserRepo) Upsert(_ context.Context, id string, patch repository.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		u = &models.User{ID: id, AutomationFrequency: models.FrequencyDaily}
		r.users[id] = u
	}
	if patch.Occupation != nil {
		u.Occupation = *patch.Occupation
	}
	if patch.AutomationEnabled != nil {
		u.AutomationEnabled = *patch.AutomationEnabled
	}
	if patch.Frequency != nil {
		u.AutomationFrequency = *patch.Frequency
	}
	if patch.AutoPublish != nil {
		u.AutomationAutoPublish = *patch.AutoPublish
	}
	if patch.OpenAIKeyEnc != nil {
		u.OpenAIKeyEncrypted = *patch.OpenAIKeyEnc
	}
	c := *u
	return &c, nil
}

func (r *memUserRepo) ListAutomationEnabled(_ context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if u.AutomationEnabled && u.Occupation != "" {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memUserRepo) SetLastAutoRun(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		t := at
		u.LastAutoRunAt = &t
	}
	return nil
}

func (r *memUserRepo) ClearLastAutoRun(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastAutoRunAt = nil
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	calls  int
	result *PublishResult
}

func (p *fakePublisher) Publish(context.Context, string, string, []byte, string) *PublishResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.result != nil {
		return p.result
	}
	return &PublishResult{Success: true, PostID: "urn:li:share:123"}
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testConfig() *cfg.Config {
	return &cfg.Config{
		SecretKey:                "test-secret",
		AutomationMaxUsersPerRun: 1,
		AutomationVisibility:     models.VisibilityPublic,
		LogRetentionPerUser:      50,
	}
}

func newTestPostService(pr repository.PostRepository, ur repository.UserRepository, pub Publisher) PostService {
	return NewPostService(testConfig(), pr, ur, NewGenerateService(nil), pub, nil, nil)
}

func seedPost(t *testing.T, repo *memPostRepo, status string) *models.Post {
	t.Helper()
	id, err := repo.Create(context.Background(), &models.Post{
		OwnerID:             "user-1",
		Topic:               "Delegation frameworks",
		Content:             "Stop doing everything yourself.",
		Status:              status,
		ScheduledVisibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	post, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return post
}

func TestScheduleRejectsPastTime(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestPostService(repo, newMemUserRepo(), &fakePublisher{})
	post := seedPost(t, repo, models.PostStatusDraft)

	_, err := svc.Schedule(context.Background(), "user-1", post.ID, &transfer.PostSchedule{
		ScheduledFor: time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")
}

func TestScheduleFromDraftAndFailed(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestPostService(repo, newMemUserRepo(), &fakePublisher{})
	future := time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)

	for _, status := range []string{models.PostStatusDraft, models.PostStatusFailed} {
		post := seedPost(t, repo, status)
		updated, err := svc.Schedule(context.Background(), "user-1", post.ID, &transfer.PostSchedule{
			ScheduledFor: future,
			Visibility:   "connections",
		})
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusScheduled, updated.Status)
		assert.Equal(t, models.VisibilityConnections, updated.ScheduledVisibility)
		require.NotNil(t, updated.ScheduledFor)
	}
}

func TestScheduleRejectedWhilePublishing(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestPostService(repo, newMemUserRepo(), &fakePublisher{})
	post := seedPost(t, repo, models.PostStatusPublishing)

	_, err := svc.Schedule(context.Background(), "user-1", post.ID, &transfer.PostSchedule{
		ScheduledFor: time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPublishNowSuccess(t *testing.T) {
	repo := newMemPostRepo()
	pub := &fakePublisher{}
	svc := newTestPostService(repo, newMemUserRepo(), pub)
	post := seedPost(t, repo, models.PostStatusDraft)

	published, err := svc.PublishNow(context.Background(), "user-1", post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, published.Status)
	assert.Equal(t, 1, published.PublishAttempts)
	require.NotNil(t, published.PlatformPostID)
	assert.Equal(t, "urn:li:share:123", *published.PlatformPostID)
	require.NotNil(t, published.PublishedAt)
	assert.Nil(t, published.LastPublishError)
	assert.Equal(t, 1, pub.callCount())
}

func TestPublishNowIdempotentOnPublished(t *testing.T) {
	repo := newMemPostRepo()
	pub := &fakePublisher{}
	svc := newTestPostService(repo, newMemUserRepo(), pub)
	post := seedPost(t, repo, models.PostStatusDraft)

	first, err := svc.PublishNow(context.Background(), "user-1", post.ID, "")
	require.NoError(t, err)
	second, err := svc.PublishNow(context.Background(), "user-1", post.ID, "")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, 1, pub.callCount())
	assert.Equal(t, 1, second.PublishAttempts)
}

func TestPublishNowConflictWhilePublishing(t *testing.T) {
	repo := newMemPostRepo()
	pub := &fakePublisher{}
	svc := newTestPostService(repo, newMemUserRepo(), pub)
	post := seedPost(t, repo, models.PostStatusPublishing)

	_, err := svc.PublishNow(context.Background(), "user-1", post.ID, "")
	assert.ErrorIs(t, err, ErrPublishInFlight)
	assert.Equal(t, 0, pub.callCount())
}

func TestPublishNowFailureRecordsError(t *testing.T) {
	repo := newMemPostRepo()
	pub := &fakePublisher{result: &PublishResult{
		Success: false,
		Error:   "LinkedIn API returned an error",
		Details: strings.Repeat("x", 600),
	}}
	svc := newTestPostService(repo, newMemUserRepo(), pub)
	post := seedPost(t, repo, models.PostStatusDraft)

	failed, err := svc.PublishNow(context.Background(), "user-1", post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, failed.Status)
	require.NotNil(t, failed.LastPublishError)
	assert.LessOrEqual(t, len(*failed.LastPublishError), 500)
	assert.Equal(t, 1, failed.PublishAttempts)
}

func TestPublishNowAttemptsMonotonic(t *testing.T) {
	repo := newMemPostRepo()
	pub := &fakePublisher{result: &PublishResult{Success: false, Error: "network"}}
	svc := newTestPostService(repo, newMemUserRepo(), pub)
	post := seedPost(t, repo, models.PostStatusDraft)

	for i := 1; i <= 3; i++ {
		failed, err := svc.PublishNow(context.Background(), "user-1", post.ID, "")
		require.NoError(t, err)
		assert.Equal(t, i, failed.PublishAttempts)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestPostService(repo, newMemUserRepo(), &fakePublisher{})
	post := seedPost(t, repo, models.PostStatusDraft)

	_, err := svc.PostInfo(context.Background(), "intruder", post.ID)
	assert.ErrorIs(t, err, ErrNotPostOwner)

	_, err = svc.PostInfo(context.Background(), "user-1", 9999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestUnscheduleReturnsToDraft(t *testing.T) {
	repo := newMemPostRepo()
	svc := newTestPostService(repo, newMemUserRepo(), &fakePublisher{})
	post := seedPost(t, repo, models.PostStatusDraft)

	scheduled, err := svc.Schedule(context.Background(), "user-1", post.ID, &transfer.PostSchedule{
		ScheduledFor: time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Equal(t, models.PostStatusScheduled, scheduled.Status)

	draft, err := svc.Unschedule(context.Background(), "user-1", post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, draft.Status)
	assert.Nil(t, draft.ScheduledFor)
}
