package capture

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperrors.ErrEmptyTarget
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("%w: url contains whitespace", apperrors.ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url must start with http:// or https://", apperrors.ErrInvalidInput)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: url has no host", apperrors.ErrInvalidInput)
	}
	return nil
}
