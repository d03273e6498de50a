package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errEmptyHeader = errors.New("empty header value")

// EncodeHeader renders v as base64 (standard alphabet) of its JSON form.
func EncodeHeader(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeHeader reverses EncodeHeader. Padded, unpadded and URL-safe
// encodings are all accepted.
func DecodeHeader(s string, v any) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errEmptyHeader
	}

	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		raw, err = enc.DecodeString(s)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode header json: %w", err)
	}
	return nil
}
