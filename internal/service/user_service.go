package service

import (
	"context"
	"errors"
	"strings"
	"time"

	cfg "github.com/Geotechcompany/synovora/configs"
	"github.com/Geotechcompany/synovora/internal/models"
	"github.com/Geotechcompany/synovora/internal/repository"
	"github.com/Geotechcompany/synovora/internal/transfer"
	"github.com/Geotechcompany/synovora/pkg/utils"
)

type UserService interface {
	Sync(ctx context.Context, userID string, us *transfer.UserSync) (*models.User, error)
	UserInfo(ctx context.Context, userID string) (*models.User, error)
	SetOpenAIKey(ctx context.Context, userID, apiKey string) (*models.User, error)
	ClearOpenAIKey(ctx context.Context, userID string) (*models.User, error)
	RefreshLinkedInStatus(ctx context.Context, userID string) (bool, error)
}

type userService struct {
	ur       repository.UserRepository
	linkedin *LinkedInService
	aesKey   []byte
}

func NewUserService(config *cfg.Config, ur repository.UserRepository, linkedin *LinkedInService) UserService {
	return &userService{
		ur:       ur,
		linkedin: linkedin,
		aesKey:   utils.DeriveKey(config.SecretKey),
	}
}

func (s *userService) Sync(ctx context.Context, userID string, us *transfer.UserSync) (*models.User, error) {
	return s.ur.Upsert(ctx, userID, repository.UserPatch{
		Email:          &us.Email,
		FirstName:      &us.FirstName,
		LastName:       &us.LastName,
		Username:       &us.Username,
		ProfilePicture: &us.ProfilePicture,
	})
}

func (s *userService) UserInfo(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.ur.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (s *userService) SetOpenAIKey(ctx context.Context, userID, apiKey string) (*models.User, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}

	encrypted, err := utils.Encrypt([]byte(apiKey), s.aesKey)
	if err != nil {
		return nil, err
	}

	last4 := utils.Last4(apiKey)
	now := time.Now().UTC()
	return s.ur.Upsert(ctx, userID, repository.UserPatch{
		OpenAIKeyEnc:   &encrypted,
		OpenAIKeyLast4: &last4,
		OpenAIKeySetAt: &now,
	})
}

func (s *userService) ClearOpenAIKey(ctx context.Context, userID string) (*models.User, error) {
	empty := ""
	return s.ur.Upsert(ctx, userID, repository.UserPatch{
		OpenAIKeyEnc:   &empty,
		OpenAIKeyLast4: &empty,
	})
}

// RefreshLinkedInStatus probes the live token and caches the result on the
// user record.
func (s *userService) RefreshLinkedInStatus(ctx context.Context, userID string) (bool, error) {
	connected := s.linkedin.ValidateToken(ctx)
	now := time.Now().UTC()
	_, err := s.ur.Upsert(ctx, userID, repository.UserPatch{
		LinkedInConnected: &connected,
		LinkedInCheckedAt: &now,
	})
	return connected, err
}
