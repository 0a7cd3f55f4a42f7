package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/pkg/validation"
)

const (
	fetchAttempts   = 3
	defaultMaxBytes = 10 << 20
)

// FetchedImage is the raw body of a remote image and a file name for it.
type FetchedImage struct {
	Data     []byte
	Filename string
}

// ImageFetcher downloads images submitted by URL instead of upload
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (*FetchedImage, error)
}

// HTTPImageFetcher implements ImageFetcher with retries on transient failures.
type HTTPImageFetcher struct {
	client    *http.Client
	validator *validation.URLValidator
	maxBytes  int64
	backoff   time.Duration
}

// NewHTTPImageFetcher creates a fetcher that refuses bodies above maxBytes.
// A non-empty allowedHosts restricts which hosts may be contacted.
func NewHTTPImageFetcher(maxBytes int64, allowedHosts ...string) *HTTPImageFetcher {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		validator: validation.NewURLValidator(allowedHosts...),
		maxBytes:  maxBytes,
		backoff:   time.Second,
	}
}

// Fetch implements ImageFetcher. 5xx responses and transport errors are
// retried with linear backoff; 4xx responses fail immediately.
func (h *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) (*FetchedImage, error) {
	parsed, err := h.validator.ValidateImageURL(imageURL)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("image download cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		data, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return &FetchedImage{Data: data, Filename: filenameFromURL(parsed)}, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to fetch image after %d attempts", fetchAttempts), lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, image/tiff, image/bmp, image/gif, */*")
	req.Header.Set("User-Agent", "go-ocr-enhancer/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, false, fmt.Errorf("image exceeds %d bytes", h.maxBytes)
	}
	return data, false, nil
}

func filenameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "remote_image"
	}
	return name
}
