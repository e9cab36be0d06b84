package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cfg "github.com/Geotechcompany/synovora/configs"
	"github.com/Geotechcompany/synovora/internal/models"
	"github.com/Geotechcompany/synovora/internal/repository"
	"github.com/Geotechcompany/synovora/internal/transfer"
)

// Cadence thresholds. Daily runs are allowed slightly early so a run that
// drifted later one day does not push every following run later too.
const (
	dailyMinGap  = 23 * time.Hour
	weeklyMinGap = 7 * 24 * time.Hour
)

type AutomationService interface {
	Settings(ctx context.Context, userID string) (*transfer.AutomationSettings, error)
	UpdateSettings(ctx context.Context, userID string, patch *transfer.AutomationPatch) (*transfer.AutomationSettings, error)
	Logs(ctx context.Context, userID string, limit int) ([]*models.AutomationLog, error)
	RunOnce(ctx context.Context) (*transfer.AutomationRunSummary, error)
	RunForUser(ctx context.Context, userID string) error
}

type automationService struct {
	config *cfg.Config
	ur     repository.UserRepository
	ar     repository.AutomationLogRepository
	posts  PostService
}

func NewAutomationService(
	config *cfg.Config,
	ur repository.UserRepository,
	ar repository.AutomationLogRepository,
	posts PostService) AutomationService {
	return &automationService{
		config: config,
		ur:     ur,
		ar:     ar,
		posts:  posts,
	}
}

// Due reports whether a user is due for an automation run. A user who never
// ran is always due.
func Due(frequency string, lastRun *time.Time, now time.Time) bool {
	if lastRun == nil {
		return true
	}
	gap := dailyMinGap
	if frequency == models.FrequencyWeekly {
		gap = weeklyMinGap
	}
	return now.Sub(*lastRun) >= gap
}

// cadenceSkipMessage is stored on the skipped log row so the user can see
// why no post was produced.
func cadenceSkipMessage(frequency string) string {
	if frequency == models.FrequencyWeekly {
		return "Already ran in last 7 days (weekly limit)."
	}
	return "Already ran in last 23h (daily limit)."
}

func (s *automationService) Settings(ctx context.Context, userID string) (*transfer.AutomationSettings, error) {
	user, err := s.ur.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &transfer.AutomationSettings{Frequency: models.FrequencyDaily}, nil
	}
	return &transfer.AutomationSettings{
		Enabled:     user.AutomationEnabled,
		Occupation:  user.Occupation,
		Frequency:   user.AutomationFrequency,
		AutoPublish: user.AutomationAutoPublish,
		LastRunAt:   user.LastAutoRunAt,
	}, nil
}

func (s *automationService) UpdateSettings(ctx context.Context, userID string, patch *transfer.AutomationPatch) (*transfer.AutomationSettings, error) {
	if patch.Frequency != nil {
		switch *patch.Frequency {
		case models.FrequencyDaily, models.FrequencyWeekly:
		default:
			return nil, errors.New("frequency must be daily or weekly")
		}
	}

	user, err := s.ur.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Enabling automation requires an occupation, either stored or provided
	// in the same request.
	if patch.Enabled != nil && *patch.Enabled {
		occupation := ""
		if user != nil {
			occupation = user.Occupation
		}
		if patch.Occupation != nil {
			occupation = *patch.Occupation
		}
		if occupation == "" {
			return nil, errors.New("an occupation is required to enable automation")
		}
	}

	updated, err := s.ur.Upsert(ctx, userID, repository.UserPatch{
		AutomationEnabled: patch.Enabled,
		Frequency:         patch.Frequency,
		Occupation:        patch.Occupation,
		AutoPublish:       patch.AutoPublish,
	})
	if err != nil {
		return nil, err
	}

	if patch.ResetSchedule {
		if err := s.ur.ClearLastAutoRun(ctx, userID); err != nil {
			return nil, err
		}
		updated.LastAutoRunAt = nil
	}

	return &transfer.AutomationSettings{
		Enabled:     updated.AutomationEnabled,
		Occupation:  updated.Occupation,
		Frequency:   updated.AutomationFrequency,
		AutoPublish: updated.AutomationAutoPublish,
		LastRunAt:   updated.LastAutoRunAt,
	}, nil
}

func (s *automationService) Logs(ctx context.Context, userID string, limit int) ([]*models.AutomationLog, error) {
	if limit <= 0 || limit > s.config.LogRetentionPerUser {
		limit = s.config.LogRetentionPerUser
	}
	return s.ar.ListByUser(ctx, userID, limit)
}

func (s *automationService) record(ctx context.Context, userID, outcome string, created int, errMsg string) {
	_, err := s.ar.Append(ctx, &models.AutomationLog{
		UserID:       userID,
		RunAt:        time.Now().UTC(),
		Outcome:      outcome,
		ItemsCreated: created,
		ErrorMessage: truncateError(errMsg),
	})
	if err != nil {
		slog.Info("automation log append failed", "user_id", userID, "error", err.Error())
		return
	}
	if err := s.ar.Prune(ctx, userID, s.config.LogRetentionPerUser); err != nil {
		slog.Info("automation log prune failed", "user_id", userID, "error", err.Error())
	}
}

// runUser generates one post for the user and, when auto publish is on,
// pushes it out immediately. A publish failure stays recorded on the post
// and does not fail the run, since the draft was created.
func (s *automationService) runUser(ctx context.Context, user *models.User) error {
	topic := "Trending in " + user.Occupation
	topics, err := s.posts.SuggestTopics(ctx, user.ID, &transfer.TopicSuggestion{
		Occupation: user.Occupation,
		Limit:      5,
	})
	if err != nil {
		slog.Info("topic suggestion failed, using fallback topic", "user_id", user.ID, "error", err.Error())
	} else if len(topics) > 0 {
		topic = topics[0]
	}

	post, err := s.posts.Generate(ctx, user.ID, &transfer.PostGeneration{Topic: topic})
	if err != nil {
		return err
	}

	if user.AutomationAutoPublish {
		if _, err := s.posts.PublishNow(ctx, user.ID, post.ID, s.config.AutomationVisibility); err != nil {
			slog.Info("auto publish failed, draft kept", "user_id", user.ID, "post_id", post.ID, "error", err.Error())
		}
	}
	return nil
}

// RunOnce processes automation-enabled users up to the per-run cap. Cadence
// skips are recorded as skipped log rows; failures for one user never abort
// the run.
func (s *automationService) RunOnce(ctx context.Context) (*transfer.AutomationRunSummary, error) {
	users, err := s.ur.ListAutomationEnabled(ctx)
	if err != nil {
		return nil, err
	}

	maxUsers := s.config.AutomationMaxUsersPerRun
	if maxUsers < 1 {
		maxUsers = 1
	}
	if maxUsers > 10 {
		maxUsers = 10
	}

	summary := &transfer.AutomationRunSummary{}
	now := time.Now().UTC()

	for _, user := range users {
		if summary.UsersProcessed >= maxUsers {
			break
		}

		if !Due(user.AutomationFrequency, user.LastAutoRunAt, now) {
			s.record(ctx, user.ID, models.AutomationOutcomeSkipped, 0, cadenceSkipMessage(user.AutomationFrequency))
			continue
		}

		summary.UsersProcessed++
		if err := s.runUser(ctx, user); err != nil {
			slog.Info("automation run failed", "user_id", user.ID, "error", err.Error())
			summary.Errors = append(summary.Errors, transfer.AutomationRunError{
				UserID: user.ID,
				Error:  truncateError(err.Error()),
			})
			s.record(ctx, user.ID, models.AutomationOutcomeFailed, 0, err.Error())
			continue
		}

		summary.PostsCreated++
		s.record(ctx, user.ID, models.AutomationOutcomeSuccess, 1, "")
		if err := s.ur.SetLastAutoRun(ctx, user.ID, now); err != nil {
			slog.Info("failed to record automation run time", "user_id", user.ID, "error", err.Error())
		}
	}

	return summary, nil
}

// RunForUser forces a run for one user regardless of cadence.
func (s *automationService) RunForUser(ctx context.Context, userID string) error {
	user, err := s.ur.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("user not found")
	}
	if user.Occupation == "" {
		return errors.New("an occupation is required to run automation")
	}

	if err := s.runUser(ctx, user); err != nil {
		s.record(ctx, userID, models.AutomationOutcomeFailed, 0, err.Error())
		return err
	}
	s.record(ctx, userID, models.AutomationOutcomeSuccess, 1, "")
	return s.ur.SetLastAutoRun(ctx, userID, time.Now().UTC())
}
