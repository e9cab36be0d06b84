package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/Geotechcompany/synovora/configs"
)

func newTestLinkedInService(apiBase string) *LinkedInService {
	svc := NewLinkedInService(cfg.LinkedIn{
		AccessToken: "token-1",
		ProfileURN:  "urn:li:person:abc",
	})
	svc.apiBase = apiBase
	return svc
}

func TestPublishRequiresCredentials(t *testing.T) {
	svc := NewLinkedInService(cfg.LinkedIn{})

	result := svc.Publish(context.Background(), "Shipping beats perfection.", "PUBLIC", nil, "")
	assert.False(t, result.Success)
	assert.Equal(t, "LinkedIn credentials are not configured", result.Error)
}

func TestPublishRejectsExpiredToken(t *testing.T) {
	var ugcCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/userinfo", "/me":
			w.WriteHeader(http.StatusUnauthorized)
		case "/ugcPosts":
			atomic.AddInt32(&ugcCalls, 1)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := newTestLinkedInService(server.URL)
	result := svc.Publish(context.Background(), "Shipping beats perfection.", "PUBLIC", nil, "")

	assert.False(t, result.Success)
	assert.Equal(t, "LinkedIn token is invalid or expired", result.Error)
	// The share endpoint must never be reached with a dead token.
	assert.Equal(t, int32(0), atomic.LoadInt32(&ugcCalls))
}

func TestPublishTextPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/userinfo":
			json.NewEncoder(w).Encode(map[string]string{"sub": "abc"})
		case "/ugcPosts":
			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			assert.Equal(t, "urn:li:person:abc", payload["author"])
			visibility, _ := payload["visibility"].(map[string]any)
			assert.Equal(t, "PUBLIC", visibility["com.linkedin.ugc.MemberNetworkVisibility"])
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "urn:li:share:99"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := newTestLinkedInService(server.URL)
	result := svc.Publish(context.Background(), "Shipping beats perfection.", "public", nil, "")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "urn:li:share:99", result.PostID)
}

func TestPublishClassifiesPlatformError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/userinfo":
			json.NewEncoder(w).Encode(map[string]string{"sub": "abc"})
		case "/ugcPosts":
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"duplicate share"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := newTestLinkedInService(server.URL)
	result := svc.Publish(context.Background(), "Shipping beats perfection.", "PUBLIC", nil, "")

	assert.False(t, result.Success)
	assert.Equal(t, "LinkedIn API returned an error", result.Error)
	assert.Contains(t, result.Details, "duplicate share")
}
