package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/pkg/models"
)

// MediaClient checks attachment references against the external media
// store. The engine never fetches attachment bytes; it only verifies that
// a referenced key exists and is visible to the sender's tenant.
type MediaClient interface {
	ValidateAttachment(ctx context.Context, tenantID string, ref models.AttachmentRef) error
}

// HTTPMediaClient is an HTTP implementation of the MediaClient interface.
type HTTPMediaClient struct {
	url string
}

// NewHTTPMediaClient creates a new HTTPMediaClient.
func NewHTTPMediaClient(url string) *HTTPMediaClient {
	return &HTTPMediaClient{url: url}
}

// ValidateAttachment asks the media service whether the key exists for the
// tenant.
func (c *HTTPMediaClient) ValidateAttachment(ctx context.Context, tenantID string, ref models.AttachmentRef) error {
	endpoint := fmt.Sprintf("%s/attachments/%s?tenant_id=%s",
		c.url, url.PathEscape(ref.Key), url.QueryEscape(tenantID))

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach media service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound, http.StatusForbidden:
		return fmt.Errorf("attachment %q: %w", ref.Key, repository.ErrNotFound)
	default:
		return fmt.Errorf("failed to validate attachment %q: status code %d", ref.Key, resp.StatusCode)
	}
}

// NopMediaClient accepts every attachment reference. Used when no media
// service is configured, e.g. local development.
type NopMediaClient struct{}

// ValidateAttachment always succeeds.
func (NopMediaClient) ValidateAttachment(context.Context, string, models.AttachmentRef) error {
	return nil
}
