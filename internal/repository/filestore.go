package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Geotechcompany/synovora/internal/models"
)

// FileStore is the last-resort persistence backend: a single JSON file
// guarded by a mutex. It cannot express atomic guarded writes, so it reports
// ConditionalUpdates false and the scheduler stays idle on top of it.
type FileStore struct {
	mu   sync.Mutex
	path string
	data fileData
}

type fileData struct {
	NextPostID int64                   `json:"next_post_id"`
	NextLogID  int64                   `json:"next_log_id"`
	Posts      []*models.Post          `json:"posts"`
	Users      map[string]*models.User `json:"users"`
	Logs       []*models.AutomationLog `json:"automation_logs"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &FileStore{
		path: filepath.Join(dir, "synovora.json"),
		data: fileData{NextPostID: 1, NextLogID: 1, Users: map[string]*models.User{}},
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, err
	}
	if s.data.Users == nil {
		s.data.Users = map[string]*models.User{}
	}
	if s.data.NextPostID < 1 {
		s.data.NextPostID = 1
	}
	if s.data.NextLogID < 1 {
		s.data.NextLogID = 1
	}
	return s, nil
}

// flush writes to a temp file and renames it over the old one so a crash
// mid-write cannot truncate the store.
func (s *FileStore) flush() error {
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (s *FileStore) findPost(id int64) *models.Post {
	for _, p := range s.data.Posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *FileStore) GetByID(_ context.Context, id int64) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.findPost(id); p != nil {
		return clonePost(p), nil
	}
	return nil, nil
}

func (s *FileStore) List(_ context.Context, filter PostFilter) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []*models.Post
	for _, p := range s.data.Posts {
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		posts = append(posts, clonePost(p))
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (s *FileStore) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Post
	for _, p := range s.data.Posts {
		if p.Status != models.PostStatusScheduled || p.ScheduledFor == nil {
			continue
		}
		if p.ScheduledFor.After(now) {
			continue
		}
		due = append(due, clonePost(p))
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(*due[j].ScheduledFor) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *FileStore) Create(_ context.Context, post *models.Post) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := clonePost(post)
	stored.ID = s.data.NextPostID
	s.data.NextPostID++
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.data.Posts = append(s.data.Posts, stored)

	if err := s.flush(); err != nil {
		return 0, err
	}
	return stored.ID, nil
}

func applyPostPatch(post *models.Post, patch PostPatch) {
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
	if patch.ImageURL != nil {
		post.ImageURL = patch.ImageURL
	}
	if patch.ImageStoragePath != nil {
		post.ImageStoragePath = patch.ImageStoragePath
	}
	if patch.ImageBase64 != nil {
		post.ImageBase64 = patch.ImageBase64
	}
	if patch.ImageMimeType != nil {
		post.ImageMimeType = patch.ImageMimeType
	}
	if patch.BumpAttempts {
		post.PublishAttempts++
	}
	post.UpdatedAt = time.Now().UTC()
}

func (s *FileStore) Update(_ context.Context, id int64, patch PostPatch) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post := s.findPost(id)
	if post == nil {
		return nil, nil
	}
	applyPostPatch(post, patch)
	if err := s.flush(); err != nil {
		return nil, err
	}
	return clonePost(post), nil
}

func (s *FileStore) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.data.Posts {
		if p.ID == id {
			s.data.Posts = append(s.data.Posts[:i], s.data.Posts[i+1:]...)
			return s.flush()
		}
	}
	return nil
}

func (s *FileStore) ConditionalUpdates() bool {
	return false
}

func (s *FileStore) UpdateIfStatus(context.Context, int64, string, PostPatch) (int64, error) {
	return 0, ErrConditionalUnsupported
}

func (s *FileStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.data.Users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (s *FileStore) UpsertUser(_ context.Context, id string, patch UserPatch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	user, ok := s.data.Users[id]
	if !ok {
		user = &models.User{
			ID:                  id,
			AutomationFrequency: models.FrequencyDaily,
			CreatedAt:           now,
		}
		s.data.Users[id] = user
	}
	mergeUser(user, patch)
	user.UpdatedAt = now

	if err := s.flush(); err != nil {
		return nil, err
	}
	return cloneUser(user), nil
}

func (s *FileStore) ListAutomationEnabled(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*models.User
	for _, u := range s.data.Users {
		if !u.AutomationEnabled || u.Occupation == "" {
			continue
		}
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i].LastAutoRunAt, users[j].LastAutoRunAt
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	return users, nil
}

func (s *FileStore) SetLastAutoRun(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.data.Users[id]; ok {
		u.LastAutoRunAt = &at
		u.UpdatedAt = time.Now().UTC()
		return s.flush()
	}
	return nil
}

func (s *FileStore) ClearLastAutoRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.data.Users[id]; ok {
		u.LastAutoRunAt = nil
		u.UpdatedAt = time.Now().UTC()
		return s.flush()
	}
	return nil
}

func (s *FileStore) AppendLog(_ context.Context, entry *models.AutomationLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	stored.ID = s.data.NextLogID
	s.data.NextLogID++
	stored.CreatedAt = time.Now().UTC()
	s.data.Logs = append(s.data.Logs, &stored)

	if err := s.flush(); err != nil {
		return 0, err
	}
	return stored.ID, nil
}

func (s *FileStore) ListLogsByUser(_ context.Context, userID string, limit int) ([]*models.AutomationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*models.AutomationLog
	for _, e := range s.data.Logs {
		if e.UserID != userID {
			continue
		}
		c := *e
		entries = append(entries, &c)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RunAt.After(entries[j].RunAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *FileStore) PruneLogs(_ context.Context, userID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []*models.AutomationLog
	for _, e := range s.data.Logs {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	if len(mine) <= keep {
		return nil
	}

	sort.Slice(mine, func(i, j int) bool { return mine[i].RunAt.After(mine[j].RunAt) })
	drop := map[int64]bool{}
	for _, e := range mine[keep:] {
		drop[e.ID] = true
	}

	kept := s.data.Logs[:0]
	for _, e := range s.data.Logs {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	s.data.Logs = kept
	return s.flush()
}

// fileUserRepository and fileLogRepository adapt FileStore to the repository
// interfaces so wiring in main stays uniform across backends.

type fileUserRepository struct{ store *FileStore }

func NewFileUserRepository(store *FileStore) UserRepository {
	return &fileUserRepository{store: store}
}

func (r *fileUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.store.GetUser(ctx, id)
}

func (r *fileUserRepository) Upsert(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	return r.store.UpsertUser(ctx, id, patch)
}

func (r *fileUserRepository) ListAutomationEnabled(ctx context.Context) ([]*models.User, error) {
	return r.store.ListAutomationEnabled(ctx)
}

func (r *fileUserRepository) SetLastAutoRun(ctx context.Context, id string, at time.Time) error {
	return r.store.SetLastAutoRun(ctx, id, at)
}

func (r *fileUserRepository) ClearLastAutoRun(ctx context.Context, id string) error {
	return r.store.ClearLastAutoRun(ctx, id)
}

type fileLogRepository struct{ store *FileStore }

func NewFileLogRepository(store *FileStore) AutomationLogRepository {
	return &fileLogRepository{store: store}
}

func (r *fileLogRepository) Append(ctx context.Context, entry *models.AutomationLog) (int64, error) {
	return r.store.AppendLog(ctx, entry)
}

func (r *fileLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AutomationLog, error) {
	return r.store.ListLogsByUser(ctx, userID, limit)
}

func (r *fileLogRepository) Prune(ctx context.Context, userID string, keep int) error {
	return r.store.PruneLogs(ctx, userID, keep)
}
