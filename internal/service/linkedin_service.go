package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	cfg "github.com/Geotechcompany/synovora/configs"
	"github.com/Geotechcompany/synovora/internal/models"
)

const linkedInBaseURL = "https://api.linkedin.com/v2"

// PublishResult reports the outcome of a publish attempt. Error strings
// distinguish credential problems, platform rejections and network failures
// so they can be stored on the post verbatim.
type PublishResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// LinkedInService publishes posts via the UGC Posts API. The token and
// profile URN can be swapped at runtime by the OAuth callback, so access is
// mutex-guarded.
type LinkedInService struct {
	mu           sync.RWMutex
	accessToken  string
	profileURN   string
	clientID     string
	clientSecret string
	redirectURI  string
	apiBase      string
	client       *http.Client
}

func NewLinkedInService(conf cfg.LinkedIn) *LinkedInService {
	return &LinkedInService{
		accessToken:  conf.AccessToken,
		profileURN:   conf.ProfileURN,
		clientID:     conf.ClientID,
		clientSecret: conf.ClientSecret,
		redirectURI:  conf.RedirectURI,
		apiBase:      linkedInBaseURL,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *LinkedInService) credentials() (token, urn string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.profileURN
}

// SetCredentials swaps the live token, typically after an OAuth exchange.
func (s *LinkedInService) SetCredentials(accessToken, profileURN string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	if profileURN != "" {
		s.profileURN = profileURN
	}
}

func (s *LinkedInService) Configured() bool {
	token, urn := s.credentials()
	return token != "" && urn != ""
}

func (s *LinkedInService) get(ctx context.Context, url string, restli bool) (*http.Response, error) {
	token, _ := s.credentials()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if restli {
		req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	}
	return s.client.Do(req)
}

// ValidateToken checks the token against /userinfo, falling back to /me for
// tokens issued without OIDC scopes.
func (s *LinkedInService) ValidateToken(ctx context.Context) bool {
	token, _ := s.credentials()
	if token == "" {
		return false
	}

	for _, probe := range []struct {
		url    string
		restli bool
	}{
		{s.apiBase + "/userinfo", false},
		{s.apiBase + "/me", true},
	} {
		resp, err := s.get(ctx, probe.url, probe.restli)
		if err != nil {
			slog.Info("linkedin token check failed", "error", err.Error())
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
	}
	return false
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			MediaUploadHTTPRequest struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

func (s *LinkedInService) uploadImageAsset(ctx context.Context, imageBytes []byte, mimeType string) (string, error) {
	token, urn := s.credentials()

	registerPayload := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   urn,
			"serviceRelationships": []map[string]string{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}
	body, err := json.Marshal(registerPayload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/assets?action=registerUpload", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("asset registration returned status %d: %s", resp.StatusCode, string(raw))
	}

	var registered registerUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return "", err
	}
	uploadURL := registered.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	assetURN := registered.Value.Asset
	if uploadURL == "" || assetURN == "" {
		return "", fmt.Errorf("asset registration response missing upload URL")
	}

	if mimeType == "" {
		mimeType = "image/png"
	}
	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(imageBytes))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Authorization", "Bearer "+token)
	putReq.Header.Set("Content-Type", mimeType)

	putResp, err := s.client.Do(putReq)
	if err != nil {
		return "", err
	}
	defer putResp.Body.Close()
	io.Copy(io.Discard, putResp.Body)

	if putResp.StatusCode < 200 || putResp.StatusCode >= 300 {
		return "", fmt.Errorf("image upload returned status %d", putResp.StatusCode)
	}
	return assetURN, nil
}

// Publish posts the text (and optional image) to the member's feed. An image
// upload failure degrades to a text-only post rather than failing the
// publish.
func (s *LinkedInService) Publish(ctx context.Context, text, visibility string, imageBytes []byte, imageMimeType string) *PublishResult {
	token, urn := s.credentials()
	if token == "" || urn == "" {
		return &PublishResult{Success: false, Error: "LinkedIn credentials are not configured"}
	}

	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return &PublishResult{Success: false, Error: "Post text is required"}
	}

	// Check the token before touching the publish endpoints, so an expired
	// credential fails with a distinct error instead of a mid-flight 401.
	if !s.ValidateToken(ctx) {
		return &PublishResult{Success: false, Error: "LinkedIn token is invalid or expired"}
	}

	visibility = models.NormalizeVisibility(visibility)

	shareCategory := "NONE"
	var media []map[string]any
	if len(imageBytes) > 0 {
		assetURN, err := s.uploadImageAsset(ctx, imageBytes, imageMimeType)
		if err != nil {
			slog.Info("image upload failed, posting text only", "error", err.Error())
		} else {
			shareCategory = "IMAGE"
			desc := cleaned
			if len(desc) > 200 {
				desc = desc[:200]
			}
			media = []map[string]any{{
				"status":      "READY",
				"description": map[string]string{"text": desc},
				"media":       assetURN,
				"title":       map[string]string{"text": "Generated visual"},
			}}
		}
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]string{"text": cleaned},
		"shareMediaCategory": shareCategory,
	}
	if media != nil {
		shareContent["media"] = media
	}

	payload := map[string]any{
		"author":         urn,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": visibility,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &PublishResult{Success: false, Error: "Failed to encode post payload", Details: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return &PublishResult{Success: false, Error: "Failed to contact LinkedIn API", Details: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return &PublishResult{Success: false, Error: "Failed to contact LinkedIn API", Details: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		var data struct {
			ID        string `json:"id"`
			EntityURN string `json:"entityUrn"`
		}
		json.Unmarshal(raw, &data)
		postID := data.ID
		if postID == "" {
			postID = data.EntityURN
		}
		return &PublishResult{Success: true, PostID: postID}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &PublishResult{
			Success: false,
			Error:   "LinkedIn rejected the credentials",
			Details: fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw)),
		}
	}
	return &PublishResult{
		Success: false,
		Error:   "LinkedIn API returned an error",
		Details: fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw)),
	}
}

// AuthURL builds the member authorization redirect for the OAuth code flow.
func (s *LinkedInService) AuthURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", s.clientID)
	q.Set("redirect_uri", s.redirectURI)
	q.Set("state", state)
	q.Set("scope", "openid profile email w_member_social")
	return "https://www.linkedin.com/oauth/v2/authorization?" + q.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode trades an authorization code for an access token and resolves
// the member URN, storing both on the service.
func (s *LinkedInService) ExchangeCode(ctx context.Context, code string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("redirect_uri", s.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://www.linkedin.com/oauth/v2/accessToken", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("token exchange returned status %d: %s", resp.StatusCode, string(raw))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return err
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token exchange returned no access token")
	}

	s.SetCredentials(token.AccessToken, "")

	// Resolve the member URN from the OIDC userinfo endpoint.
	infoResp, err := s.get(ctx, s.apiBase+"/userinfo", false)
	if err != nil {
		return err
	}
	defer infoResp.Body.Close()

	if infoResp.StatusCode == http.StatusOK {
		var info struct {
			Sub string `json:"sub"`
		}
		if err := json.NewDecoder(infoResp.Body).Decode(&info); err == nil && info.Sub != "" {
			s.SetCredentials(token.AccessToken, "urn:li:person:"+info.Sub)
		}
	}
	return nil
}
