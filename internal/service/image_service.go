package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const hfInferenceBaseURL = "https://api-inference.huggingface.co/models"

// GeneratedImage is the output of one image generation: either stored in R2
// (URL and storage path set) or carried inline as base64 when no object
// storage is configured.
type GeneratedImage struct {
	URL         string
	StoragePath string
	Base64      string
	MimeType    string
}

type ImageService struct {
	token  string
	model  string
	client *http.Client
	r2     *R2Service
}

func NewImageService(token, model string, r2 *R2Service) *ImageService {
	return &ImageService{
		token:  token,
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
		r2:     r2,
	}
}

func (s *ImageService) Configured() bool {
	return s.token != ""
}

func (s *ImageService) generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", hfInferenceBaseURL, s.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image generation returned status %d: %s", resp.StatusCode, string(raw))
	}

	return io.ReadAll(resp.Body)
}

// Generate produces an image for the prompt and stores it in R2 when
// configured, falling back to inline base64 otherwise.
func (s *ImageService) Generate(ctx context.Context, prompt string) (*GeneratedImage, error) {
	data, err := s.generate(ctx, prompt)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || kind.MIME.Type != "image" {
		return nil, fmt.Errorf("image generation returned non-image payload")
	}

	if s.r2 != nil && s.r2.Configured() {
		id, err := gonanoid.New()
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		key := fmt.Sprintf("generated/%s.%s", id, kind.Extension)
		url, err := s.r2.UploadToR2(ctx, key, data, kind.MIME.Value)
		if err != nil {
			return nil, err
		}
		return &GeneratedImage{URL: url, StoragePath: key, MimeType: kind.MIME.Value}, nil
	}

	return &GeneratedImage{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: kind.MIME.Value,
	}, nil
}

// Resolve returns the raw bytes for a stored image, wherever it lives.
func (s *ImageService) Resolve(ctx context.Context, img *GeneratedImage) ([]byte, error) {
	if img.Base64 != "" {
		return base64.StdEncoding.DecodeString(img.Base64)
	}
	if img.StoragePath != "" && s.r2 != nil && s.r2.Configured() {
		return s.r2.GetFromR2(ctx, img.StoragePath)
	}
	return nil, fmt.Errorf("image has no retrievable location")
}
