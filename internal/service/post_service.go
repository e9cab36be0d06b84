package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cfg "github.com/Geotechcompany/synovora/configs"
	"github.com/Geotechcompany/synovora/internal/models"
	"github.com/Geotechcompany/synovora/internal/provider"
	"github.com/Geotechcompany/synovora/internal/repository"
	"github.com/Geotechcompany/synovora/internal/transfer"
	"github.com/Geotechcompany/synovora/pkg/utils"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrNotPostOwner    = errors.New("post belongs to another user")
	ErrInvalidState    = errors.New("operation not allowed in current post status")
	ErrPublishInFlight = errors.New("post is already being published")
)

const maxStoredErrorLen = 500

// Publisher is the outbound platform adapter. LinkedInService is the real
// implementation.
type Publisher interface {
	Publish(ctx context.Context, text, visibility string, imageBytes []byte, imageMimeType string) *PublishResult
}

type PostService interface {
	Generate(ctx context.Context, userID string, pg *transfer.PostGeneration) (*models.Post, error)
	PostInfo(ctx context.Context, userID string, postID int64) (*models.Post, error)
	List(ctx context.Context, userID, status string) ([]*models.Post, error)
	Update(ctx context.Context, userID string, postID int64, pu *transfer.PostUpdate) (*models.Post, error)
	Remove(ctx context.Context, userID string, postID int64) error
	Schedule(ctx context.Context, userID string, postID int64, ps *transfer.PostSchedule) (*models.Post, error)
	Unschedule(ctx context.Context, userID string, postID int64) (*models.Post, error)
	PublishNow(ctx context.Context, userID string, postID int64, visibility string) (*models.Post, error)
	PublishClaimed(ctx context.Context, post *models.Post) (*models.Post, error)
	Email(ctx context.Context, userID string, postID int64, pe *transfer.PostEmail) error
	SuggestTopics(ctx context.Context, userID string, ts *transfer.TopicSuggestion) ([]string, error)
}

type postService struct {
	config    *cfg.Config
	pr        repository.PostRepository
	ur        repository.UserRepository
	gen       *GenerateService
	publisher Publisher
	images    *ImageService
	mailer    *EmailService
	aesKey    []byte
}

func NewPostService(
	config *cfg.Config,
	pr repository.PostRepository,
	ur repository.UserRepository,
	gen *GenerateService,
	publisher Publisher,
	images *ImageService,
	mailer *EmailService) PostService {
	return &postService{
		config:    config,
		pr:        pr,
		ur:        ur,
		gen:       gen,
		publisher: publisher,
		images:    images,
		mailer:    mailer,
		aesKey:    utils.DeriveKey(config.SecretKey),
	}
}

// chainFor builds the provider fallback chain for a user. A user-supplied
// OpenAI key takes precedence over the server key.
func (s *postService) chainFor(ctx context.Context, userID string) (*provider.Chain, error) {
	creds := provider.Credentials{
		GeminiAPIKey:  s.config.Providers.GeminiAPIKey,
		GeminiModel:   s.config.Providers.GeminiModel,
		NvidiaAPIKey:  s.config.Providers.NvidiaAPIKey,
		NvidiaBaseURL: s.config.Providers.NvidiaBaseURL,
		NvidiaModel:   s.config.Providers.NvidiaModel,
		OpenAIAPIKey:  s.config.Providers.OpenAIAPIKey,
		OpenAIModel:   s.config.Providers.OpenAIModel,
	}

	if userID != "" {
		user, err := s.ur.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user != nil && user.OpenAIKeyEncrypted != "" {
			key, err := utils.Decrypt(user.OpenAIKeyEncrypted, s.aesKey)
			if err != nil {
				slog.Info("stored OpenAI key could not be decrypted", "user_id", userID)
			} else {
				creds.OpenAIAPIKey = key
			}
		}
	}

	return provider.NewChain(provider.Build(creds)), nil
}

func (s *postService) occupationFor(ctx context.Context, userID string) string {
	user, err := s.ur.GetByID(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	return user.Occupation
}

func (s *postService) owned(ctx context.Context, userID string, postID int64) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.OwnerID != userID {
		return nil, ErrNotPostOwner
	}
	return post, nil
}

func (s *postService) Generate(ctx context.Context, userID string, pg *transfer.PostGeneration) (*models.Post, error) {
	if pg == nil || pg.Topic == "" {
		return nil, errors.New("topic is required")
	}

	chain, err := s.chainFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	content, err := s.gen.Generate(ctx, chain, s.occupationFor(ctx, userID), pg.Topic, pg.AdditionalContext)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	post := &models.Post{
		OwnerID:             userID,
		Topic:               pg.Topic,
		Content:             content,
		Status:              models.PostStatusDraft,
		ScheduledVisibility: models.VisibilityPublic,
	}

	if s.images != nil && s.images.Configured() && !s.config.AutomationSkipImage {
		img, err := s.images.Generate(ctx, BuildImagePrompt(pg.Topic, content))
		if err != nil {
			slog.Info("image generation failed, keeping text-only draft", "error", err.Error())
		} else {
			if img.URL != "" {
				post.ImageURL = &img.URL
			}
			if img.StoragePath != "" {
				post.ImageStoragePath = &img.StoragePath
			}
			if img.Base64 != "" {
				post.ImageBase64 = &img.Base64
			}
			post.ImageMimeType = &img.MimeType
		}
	}

	id, err := s.pr.Create(ctx, post)
	if err != nil {
		return nil, err
	}
	return s.pr.GetByID(ctx, id)
}

func (s *postService) PostInfo(ctx context.Context, userID string, postID int64) (*models.Post, error) {
	return s.owned(ctx, userID, postID)
}

func (s *postService) List(ctx context.Context, userID, status string) ([]*models.Post, error) {
	return s.pr.List(ctx, repository.PostFilter{OwnerID: userID, Status: status})
}

func (s *postService) Update(ctx context.Context, userID string, postID int64, pu *transfer.PostUpdate) (*models.Post, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusPublishing {
		return nil, ErrPublishInFlight
	}

	patch := repository.PostPatch{
		Content:          pu.Content,
		ImageBase64:      pu.ImageBase64,
		ImageMimeType:    pu.ImageMimeType,
		ImageURL:         pu.ImageURL,
		ImageStoragePath: pu.ImageStoragePath,
	}
	// Direct status edits are limited to parking a post back in draft.
	if pu.Status != nil {
		if *pu.Status != models.PostStatusDraft {
			return nil, ErrInvalidState
		}
		patch.Status = pu.Status
		patch.ClearScheduledFor = true
		patch.ClearLastPublishError = true
	}

	return s.pr.Update(ctx, postID, patch)
}

func (s *postService) Remove(ctx context.Context, userID string, postID int64) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPublishing {
		return ErrPublishInFlight
	}
	return s.pr.Remove(ctx, postID)
}

func (s *postService) Schedule(ctx context.Context, userID string, postID int64, ps *transfer.PostSchedule) (*models.Post, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	switch post.Status {
	case models.PostStatusDraft, models.PostStatusFailed, models.PostStatusScheduled:
	default:
		return nil, ErrInvalidState
	}

	scheduledFor, err := time.Parse(time.RFC3339, ps.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduled time format: %w", err)
	}
	scheduledFor = scheduledFor.UTC()
	if !scheduledFor.After(time.Now().UTC()) {
		return nil, errors.New("scheduled time must be in the future")
	}

	status := models.PostStatusScheduled
	visibility := models.NormalizeVisibility(ps.Visibility)
	return s.pr.Update(ctx, postID, repository.PostPatch{
		Status:                &status,
		ScheduledFor:          &scheduledFor,
		ScheduledVisibility:   &visibility,
		ClearLastPublishError: true,
	})
}

func (s *postService) Unschedule(ctx context.Context, userID string, postID int64) (*models.Post, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusScheduled {
		return nil, ErrInvalidState
	}

	status := models.PostStatusDraft
	return s.pr.Update(ctx, postID, repository.PostPatch{
		Status:            &status,
		ClearScheduledFor: true,
	})
}

func truncateError(msg string) string {
	if len(msg) > maxStoredErrorLen {
		return msg[:maxStoredErrorLen]
	}
	return msg
}

func (s *postService) imageBytes(ctx context.Context, post *models.Post) ([]byte, string) {
	if post.ImageBase64 != nil && *post.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(*post.ImageBase64)
		if err != nil {
			slog.Info("stored image is not valid base64", "post_id", post.ID)
			return nil, ""
		}
		return data, deref(post.ImageMimeType)
	}
	if post.ImageStoragePath != nil && *post.ImageStoragePath != "" && s.images != nil {
		data, err := s.images.Resolve(ctx, &GeneratedImage{StoragePath: *post.ImageStoragePath})
		if err != nil {
			slog.Info("stored image could not be fetched", "post_id", post.ID, "error", err.Error())
			return nil, ""
		}
		return data, deref(post.ImageMimeType)
	}
	return nil, ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// finishPublish runs the adapter call for a post already in publishing status
// and records the terminal transition.
func (s *postService) finishPublish(ctx context.Context, post *models.Post, visibility string) (*models.Post, error) {
	imageBytes, mimeType := s.imageBytes(ctx, post)
	result := s.publisher.Publish(ctx, post.Content, visibility, imageBytes, mimeType)

	if result.Success {
		status := models.PostStatusPublished
		now := time.Now().UTC()
		patch := repository.PostPatch{
			Status:                &status,
			PublishedAt:           &now,
			ClearLastPublishError: true,
			ClearScheduledFor:     true,
		}
		if result.PostID != "" {
			patch.PlatformPostID = &result.PostID
		}
		return s.pr.Update(ctx, post.ID, patch)
	}

	status := models.PostStatusFailed
	msg := result.Error
	if result.Details != "" {
		msg = msg + ": " + result.Details
	}
	msg = truncateError(msg)
	slog.Info("publish failed", "post_id", post.ID, "error", msg)
	return s.pr.Update(ctx, post.ID, repository.PostPatch{
		Status:            &status,
		LastPublishError:  &msg,
		ClearScheduledFor: true,
	})
}

func (s *postService) PublishNow(ctx context.Context, userID string, postID int64, visibility string) (*models.Post, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	switch post.Status {
	case models.PostStatusPublished:
		// Already out; repeating the call must not post twice.
		return post, nil
	case models.PostStatusPublishing:
		return nil, ErrPublishInFlight
	}

	if visibility == "" {
		visibility = post.ScheduledVisibility
	}
	visibility = models.NormalizeVisibility(visibility)

	publishing := models.PostStatusPublishing
	claim := repository.PostPatch{Status: &publishing, BumpAttempts: true}

	if s.pr.ConditionalUpdates() {
		affected, err := s.pr.UpdateIfStatus(ctx, postID, post.Status, claim)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, ErrPublishInFlight
		}
	} else {
		if _, err := s.pr.Update(ctx, postID, claim); err != nil {
			return nil, err
		}
	}

	post, err = s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.finishPublish(ctx, post, visibility)
}

// PublishClaimed completes publication for a post the scheduler has already
// moved into publishing status.
func (s *postService) PublishClaimed(ctx context.Context, post *models.Post) (*models.Post, error) {
	return s.finishPublish(ctx, post, post.ScheduledVisibility)
}

func (s *postService) Email(ctx context.Context, userID string, postID int64, pe *transfer.PostEmail) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}

	subject := pe.Subject
	if subject == "" {
		subject = "Your post draft: " + post.Topic
	}
	return s.mailer.Send(pe.Recipients, subject, pe.Intro, post.Content)
}

func (s *postService) SuggestTopics(ctx context.Context, userID string, ts *transfer.TopicSuggestion) ([]string, error) {
	occupation := ts.Occupation
	if occupation == "" {
		occupation = s.occupationFor(ctx, userID)
	}
	if occupation == "" {
		return nil, errors.New("occupation is required for topic suggestions")
	}

	chain, err := s.chainFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.gen.SuggestTopics(ctx, chain, occupation, ts.Limit)
}
