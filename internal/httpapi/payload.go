package httpapi

import (
	"encoding/base64"
	"errors"
	"strings"
)

// decodeImageField normalizes the encoded-string input to raw bytes. It
// accepts plain base64 and data URLs; for data URLs the embedded MIME type
// is returned as well.
func decodeImageField(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", errors.New("empty image payload")
	}
	mime := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", errors.New("malformed data URL")
		}
		meta := s[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("data URL must be base64 encoded")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		s = s[comma+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", errors.New("invalid base64 image payload")
	}
	return b, mime, nil
}

// encodeImage is the inverse for responses.
func encodeImage(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
