package validation

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	apperrors "go-ocr-enhancer/internal/errors"
)

// URLValidator checks image URLs submitted instead of an upload
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator accepts http and https URLs. When allowedHosts is non-empty
// only those hosts are accepted; entries are matched case-insensitively and
// without port.
func NewURLValidator(allowedHosts ...string) *URLValidator {
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   hosts,
	}
}

// ValidateImageURL returns the parsed URL or a validation error
func (v *URLValidator) ValidateImageURL(imageURL string) (*url.URL, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, apperrors.NewValidationError("image URL cannot be empty", nil)
	}

	parsed, err := url.Parse(imageURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image URL format", err)
	}
	if !slices.Contains(v.allowedSchemes, strings.ToLower(parsed.Scheme)) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image URL scheme %q not allowed", parsed.Scheme), nil)
	}
	if parsed.Hostname() == "" {
		return nil, apperrors.NewValidationError("image URL must have a valid host", nil)
	}
	if !v.isHostAllowed(parsed.Hostname()) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image URL host %q not allowed", parsed.Hostname()), nil)
	}
	return parsed, nil
}

// isHostAllowed reports true for every host when no allow list is set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	return slices.Contains(v.allowedHosts, strings.ToLower(host))
}
