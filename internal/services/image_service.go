package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/aquaspa/internal/models"
)

// ImageStore is the remote image host surface the footer service depends on.
// Upload returns the stored icon or an error; callers must treat a returned
// error as fatal for the enclosing batch. Delete errors are advisory: the
// cascade logs them and keeps going.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, mimeType string, opts UploadOptions) (*models.Icon, error)
	Delete(ctx context.Context, remoteID string) error
}

// UploadOptions tunes a single upload call.
type UploadOptions struct {
	// RemoteID, when set, overwrites the existing remote image instead of
	// minting a new identifier.
	RemoteID string
	// LogoScale requests the host-side fixed-width scale transform used for
	// logo-typed icons.
	LogoScale bool
}

const logoScaleWidth = 300

// ImageService talks to the hosted image API.
type ImageService struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewImageService creates a client for the image host.
func NewImageService(baseURL, apiKey, apiSecret string) *ImageService {
	return &ImageService{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadTransform struct {
	Width int    `json:"width"`
	Crop  string `json:"crop"`
}

type uploadRequest struct {
	File           string            `json:"file"`
	PublicID       string            `json:"public_id,omitempty"`
	Overwrite      bool              `json:"overwrite,omitempty"`
	Transformation []uploadTransform `json:"transformation"`
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

// Upload pushes image bytes to the host and returns the stored icon.
func (s *ImageService) Upload(ctx context.Context, data []byte, mimeType string, opts UploadOptions) (*models.Icon, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	payload := uploadRequest{
		File:           fmt.Sprintf("data:%s;base64,%s", mimeType, encoded),
		Transformation: []uploadTransform{},
	}
	if opts.RemoteID != "" {
		payload.PublicID = opts.RemoteID
		payload.Overwrite = true
	}
	if opts.LogoScale {
		payload.Transformation = append(payload.Transformation, uploadTransform{Width: logoScaleWidth, Crop: "scale"})
	}

	var result uploadResponse
	if err := s.post(ctx, "/v1/images/upload", payload, &result); err != nil {
		log.Printf("[ImageHost] upload failed: %v", err)
		return nil, err
	}

	return &models.Icon{RemoteID: result.PublicID, URL: result.SecureURL}, nil
}

type destroyRequest struct {
	PublicID string `json:"public_id"`
}

type destroyResponse struct {
	Result string `json:"result"`
}

// Delete removes a remote image by identifier. A non-ok host response comes
// back as an error so callers can log it without halting their own cleanup.
func (s *ImageService) Delete(ctx context.Context, remoteID string) error {
	var result destroyResponse
	if err := s.post(ctx, "/v1/images/destroy", destroyRequest{PublicID: remoteID}, &result); err != nil {
		log.Printf("[ImageHost] delete failed for %s: %v", remoteID, err)
		return err
	}

	if result.Result != "ok" {
		log.Printf("[ImageHost] delete for %s reported %q", remoteID, result.Result)
		return fmt.Errorf("image host reported %q", result.Result)
	}

	return nil
}

func (s *ImageService) post(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.apiKey, s.apiSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image host returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}
