package feeds

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"
)

var gzipMagic = []byte{0x1f, 0x8b}

// DecodePayload transparently inflates gzip-compressed payloads. Anything else
// is returned unchanged.
func DecodePayload(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, gzipMagic) {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open gzip payload: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate gzip payload: %w", err)
	}
	return out, nil
}

// DecodeText returns raw as UTF-8, falling back to Latin-1 when raw is not
// valid UTF-8. A leading byte-order mark is dropped.
func DecodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO 8859-1 maps every byte; this branch is unreachable in practice.
		return string(raw)
	}
	return string(decoded)
}

// ParseDate accepts the layouts used by the feeds and returns nil for empty or
// unparsable input.
func ParseDate(value string, layouts ...string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Date layouts shared by adapters.
const (
	LayoutISODate  = "2006-01-02"
	LayoutYear     = "2006"
	LayoutDMY      = "02/01/2006"
	LayoutISOTime  = "2006-01-02T15:04:05"
	LayoutISOSpace = "2006-01-02 15:04:05"
)

// truncateDay drops the clock component so a timestamped date compares equal
// to a bare one.
func truncateDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// ParseISODate accepts YYYY-MM-DD with an optional time component.
func ParseISODate(value string) *time.Time {
	return truncateDay(ParseDate(value, LayoutISODate, LayoutISOTime, LayoutISOSpace, time.RFC3339))
}
