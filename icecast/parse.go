package icecast

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	htmlTagPattern   = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	bitratePattern   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)`)
)

// Title separators in priority order. The n-dash and m-dash variants show up
// in metadata written by humans.
var songSeparators = []string{" - ", " – ", " — "}

// Timestamp layouts seen in the wild for stream_start style fields.
var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	// Icecast writes stream_start_iso8601 with a colonless zone offset.
	"2006-01-02T15:04:05-0700",
	time.RFC1123Z,
	time.RFC1123,
	"02/Jan/2006:15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// unmarshalObject decodes payload into dst, failing when the payload is not
// a JSON object at the top level. json.Unmarshal alone would accept "null".
func unmarshalObject(payload []byte, dst any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrInvalidIcecastPayload
	}
	return json.Unmarshal(trimmed, dst)
}

// cleanString collapses runs of whitespace and trims; empty results become nil.
func cleanString(value string) *string {
	cleaned := strings.TrimSpace(whitespacePattern.ReplaceAllString(value, " "))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// stripHTML removes markup tags, then cleans whitespace.
func stripHTML(value string) *string {
	return cleanString(htmlTagPattern.ReplaceAllString(value, " "))
}

// sanitizeURL validates that value parses as an absolute URL and returns its
// normalized form. Relative or malformed URLs yield nil, never an error.
func sanitizeURL(value string) *string {
	cleaned := cleanString(value)
	if cleaned == nil {
		return nil
	}
	parsed, err := url.Parse(*cleaned)
	if err != nil || !parsed.IsAbs() {
		return nil
	}
	normalized := parsed.String()
	return &normalized
}

// toNumber coerces a JSON value that may arrive as either a string or a
// number. Non-finite and unparseable values yield nil.
func toNumber(value any) *float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// parseBitrate is toNumber with a fallback that extracts the leading numeral
// from human strings like "128 kbps".
func parseBitrate(value any) *float64 {
	if numeric := toNumber(value); numeric != nil {
		return numeric
	}
	text, ok := value.(string)
	if !ok {
		return nil
	}
	match := bitratePattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	return toNumber(match[1])
}

// audioInfo holds values parsed from Icecast's semicolon-delimited
// "audio_info" string, e.g. "ice-bitrate=192;ice-channels=2".
type audioInfo struct {
	bitrate    *float64
	channels   *float64
	samplerate *float64
}

// parseAudioInfo splits a key=value;key=value audio_info string. Keys are
// matched case-insensitively by suffix so both "bitrate" and "ice-bitrate"
// count; the first match per key wins.
func parseAudioInfo(value string) audioInfo {
	var info audioInfo
	for _, segment := range strings.Split(value, ";") {
		segment = strings.TrimSpace(segment)
		key, raw, found := strings.Cut(segment, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		parsed := toNumber(strings.TrimSpace(raw))
		switch {
		case strings.HasSuffix(key, "bitrate"):
			if info.bitrate == nil {
				info.bitrate = parsed
			}
		case strings.HasSuffix(key, "channels"):
			if info.channels == nil {
				info.channels = parsed
			}
		case strings.HasSuffix(key, "samplerate"):
			if info.samplerate == nil {
				info.samplerate = parsed
			}
		}
	}
	return info
}

// toISODate parses a timestamp in any known layout and re-emits it as
// RFC 3339 UTC. Unparseable input yields nil.
func toISODate(value string) *string {
	cleaned := cleanString(value)
	if cleaned == nil {
		return nil
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, *cleaned)
		if err == nil {
			iso := parsed.UTC().Format(time.RFC3339)
			return &iso
		}
	}
	return nil
}

// ensureMountFormat coerces a mount to leading-slash form. Empty or root
// mounts yield nil so callers can fall back to a default.
func ensureMountFormat(mount string) *string {
	if mount == "" || mount == "/" {
		return nil
	}
	if !strings.HasPrefix(mount, "/") {
		mount = "/" + mount
	}
	return &mount
}

// parsedSong is the result of splitting a free-text "Artist - Title" string.
type parsedSong struct {
	artist   *string
	title    *string
	combined *string
}

// parseSongString splits a raw now-playing string on the first separator
// that yields a non-trivial split. When no separator matches, the whole
// cleaned string is treated as the title.
func parseSongString(value string) parsedSong {
	cleaned := stripHTML(value)
	if cleaned == nil {
		return parsedSong{}
	}

	text := *cleaned
	for _, separator := range songSeparators {
		index := strings.Index(text, separator)
		if index <= 0 || index >= len(text)-len(separator) {
			continue
		}
		artist := cleanString(text[:index])
		title := cleanString(text[index+len(separator):])
		if artist == nil && title == nil {
			continue
		}
		return parsedSong{artist: artist, title: title, combined: joinNonEmpty(" – ", artist, title)}
	}

	return parsedSong{title: &text, combined: &text}
}

// joinNonEmpty joins the non-nil parts with sep, or returns nil when every
// part is nil.
func joinNonEmpty(sep string, parts ...*string) *string {
	var present []string
	for _, part := range parts {
		if part != nil {
			present = append(present, *part)
		}
	}
	if len(present) == 0 {
		return nil
	}
	joined := strings.Join(present, sep)
	return &joined
}
