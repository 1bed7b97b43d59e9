// Package codec converts binary payloads between raw bytes, base64 text, data
// URIs and locally addressable handles. Nothing here performs I/O.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// HandleScheme prefixes every handle URL.
const HandleScheme = "blob:"

var ErrInvalidDataURI = errors.New("invalid data URI")

// Handle is a locally addressable reference to an in-memory payload, the
// moral equivalent of a browser object URL. Two handles built from the same
// bytes are equivalent but distinct.
type Handle struct {
	URL      string
	MIMEType string
	data     []byte
}

// Bytes returns a copy of the payload.
func (h *Handle) Bytes() []byte {
	out := make([]byte, len(h.data))
	copy(out, h.data)
	return out
}

// Size returns the payload length in bytes.
func (h *Handle) Size() int {
	return len(h.data)
}

// DataURI renders the payload as a self-contained data URI.
func (h *Handle) DataURI() string {
	return DataURI(ToBase64(h.data), h.MIMEType)
}

func (h *Handle) String() string {
	return h.URL
}

// ToBase64 encodes data with standard padding.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes standard base64. Whitespace is ignored.
func FromBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// ToDisplayableReference wraps a copy of data in a new Handle.
func ToDisplayableReference(data []byte, mimeType string) *Handle {
	buf := make([]byte, len(data))
	copy(buf, data)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Handle{
		URL:      HandleScheme + uuid.New().String(),
		MIMEType: mimeType,
		data:     buf,
	}
}

// DataURI builds "data:<mime>;base64,<payload>".
func DataURI(b64, mimeType string) string {
	return "data:" + mimeType + ";base64," + b64
}

// ParseDataURI splits a base64 data URI into its payload and MIME type.
func ParseDataURI(uri string) (b64, mimeType string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", "", fmt.Errorf("%w: payload is not base64", ErrInvalidDataURI)
	}
	return payload, mimeType, nil
}
