package audit

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the request before any network call is made. It judges
// the normalized form, which is what gets sent.
func (r Request) Validate() error {
	n := r.Normalized()
	if n.SkillURL == "" && strings.TrimSpace(n.SkillContent) == "" {
		return ErrMissingInput
	}
	if n.SkillURL != "" {
		if err := ValidateSkillURL(n.SkillURL); err != nil {
			return err
		}
	}
	return nil
}

// Normalized trims the URL and strips NUL bytes from the content; the
// content is otherwise sent unchanged. Blank content is dropped from the
// JSON body.
func (r Request) Normalized() Request {
	content := SanitizeContent(r.SkillContent)
	if strings.TrimSpace(content) == "" {
		content = ""
	}
	return Request{
		SkillURL:     strings.TrimSpace(r.SkillURL),
		SkillContent: content,
	}
}

// ValidateSkillURL requires an absolute http or https URL with a host.
func ValidateSkillURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSkillURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q (allowed: http, https)", ErrInvalidSkillURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidSkillURL)
	}
	return nil
}

// SanitizeContent removes null bytes.
func SanitizeContent(input string) string {
	return strings.ReplaceAll(input, "\x00", "")
}
