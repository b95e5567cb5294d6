package icecast

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// centovaTrack is the structured track block Centova attaches when its
// metadata scraper recognizes the song.
type centovaTrack struct {
	Artist   *string `json:"artist"`
	Title    *string `json:"title"`
	Album    *string `json:"album"`
	ImageURL *string `json:"imageurl"`
}

// centovaEntry is one stream record inside a streaminfo.get result. Field
// types are loose on purpose: the panel reports numbers as strings and
// status flags as either strings or booleans depending on version.
type centovaEntry struct {
	Title             *string       `json:"title"`
	Song              *string       `json:"song"`
	Summary           *string       `json:"summary"`
	Track             *centovaTrack `json:"track"`
	Bitrate           any           `json:"bitrate"`
	Server            any           `json:"server"`
	AutoDJ            any           `json:"autodj"`
	Source            any           `json:"source"`
	Offline           bool          `json:"offline"`
	Listeners         any           `json:"listeners"`
	ListenerTotal     any           `json:"listenertotal"`
	MaxListeners      any           `json:"maxlisteners"`
	RawMeta           *string       `json:"rawmeta"`
	Mountpoint        *string       `json:"mountpoint"`
	TuneInURL         *string       `json:"tuneinurl"`
	TuneInURLTLS      *string       `json:"tuneinurltls"`
	ProxyTuneInURL    *string       `json:"proxytuneinurl"`
	ProxyTuneInURLTLS *string       `json:"proxytuneinurltls"`
	TuneInFormat      *string       `json:"tuneinformat"`
	ServerType        *string       `json:"servertype"`
	WebPlayer         *string       `json:"webplayer"`
	URL               *string       `json:"url"`
}

type centovaEnvelope struct {
	Type  string         `json:"type"`
	Data  []centovaEntry `json:"data"`
	Error *string        `json:"error"`
}

// NormalizeCentova validates and transforms a Centova streaminfo.get RPC
// envelope into the canonical status. Error envelopes and empty data arrays
// always fail; the upstream error message is surfaced when present.
func NormalizeCentova(payload []byte, opts CentovaOptions) (*StreamStatus, error) {
	var envelope centovaEnvelope
	if err := unmarshalObject(payload, &envelope); err != nil {
		if errors.Is(err, ErrInvalidIcecastPayload) {
			return nil, ErrInvalidCentovaPayload
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCentovaPayload, shapeDetail(err))
	}
	if envelope.Type != "result" {
		if envelope.Error != nil && *envelope.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCentovaPayload, *envelope.Error)
		}
		return nil, fmt.Errorf("%w: unexpected envelope type %q", ErrInvalidCentovaPayload, envelope.Type)
	}
	if len(envelope.Data) == 0 {
		return nil, ErrCentovaMissingData
	}

	entry := &envelope.Data[0]

	mount := DefaultMount
	if m := firstMount(entry.Mountpoint, &opts.Mount); m != nil {
		mount = *m
	}

	status := &StreamStatus{
		Mount:        mount,
		Bitrate:      parseBitrate(entry.Bitrate),
		Listeners:    toNumber(entry.Listeners),
		ListenerPeak: peakListeners(entry),
	}

	if entry.Title != nil {
		if trimmed := strings.TrimSpace(*entry.Title); trimmed != "" {
			status.StreamName = &trimmed
		}
	}
	if entry.Summary != nil {
		status.StreamDescription = stripHTML(*entry.Summary)
	}
	if entry.TuneInFormat != nil && *entry.TuneInFormat != "" {
		contentType := "audio/" + *entry.TuneInFormat
		status.ContentType = &contentType
	}

	track, parsed := buildCentovaTrackInfo(entry)
	status.CurrentlyPlaying = centovaNowPlaying(track, parsed)
	if track.Artist != nil || track.Title != nil || track.Album != nil || track.ArtworkURL != nil {
		status.Track = track
	}

	status.ListenURL = firstValidURL(
		entry.ProxyTuneInURLTLS,
		entry.ProxyTuneInURL,
		entry.TuneInURLTLS,
		entry.TuneInURL,
	)
	status.PlaybackURL = status.ListenURL

	// A validated tune-in URL is treated as sufficient evidence of being
	// on-air even when the status flags disagree.
	status.IsOnline = (!entry.Offline && (flagOnline(entry.Server) || flagConnected(entry.Source))) ||
		status.ListenURL != nil

	status.Server = ServerInfo{
		Host:    hostFromURL(entry.URL),
		Version: entry.ServerType,
	}
	if opts.Username != "" {
		username := opts.Username
		status.Server.Admin = &username
	}

	if opts.IncludeRaw {
		status.Raw = rawEcho(payload)
	}
	return status, nil
}

// buildCentovaTrackInfo prefers the structured track block and falls back to
// the free-text song/rawmeta string.
func buildCentovaTrackInfo(entry *centovaEntry) (*TrackInfo, parsedSong) {
	songText := entry.Song
	if songText == nil {
		songText = entry.RawMeta
	}
	var parsed parsedSong
	if songText != nil {
		parsed = parseSongString(*songText)
	}

	track := &TrackInfo{}
	if entry.Track != nil {
		if entry.Track.Title != nil {
			track.Title = cleanString(*entry.Track.Title)
		}
		if entry.Track.Artist != nil {
			track.Artist = cleanString(*entry.Track.Artist)
		}
		if entry.Track.Album != nil {
			track.Album = cleanString(*entry.Track.Album)
		}
		if entry.Track.ImageURL != nil {
			track.ArtworkURL = sanitizeURL(*entry.Track.ImageURL)
		}
	}
	if track.Title == nil {
		track.Title = parsed.title
	}
	if track.Title == nil {
		track.Title = parsed.combined
	}
	if track.Artist == nil {
		track.Artist = parsed.artist
	}
	return track, parsed
}

// centovaNowPlaying joins "artist – title" when either exists, else falls
// back to the raw parsed string.
func centovaNowPlaying(track *TrackInfo, parsed parsedSong) *string {
	if track.Artist != nil || track.Title != nil {
		if joined := joinNonEmpty(" – ", track.Artist, track.Title); joined != nil {
			return joined
		}
		return track.Title
	}
	return parsed.combined
}

func firstMount(candidates ...*string) *string {
	for _, candidate := range candidates {
		if candidate != nil && *candidate != "" {
			if normalized := ensureMountFormat(*candidate); normalized != nil {
				return normalized
			}
		}
	}
	return nil
}

// peakListeners prefers the configured maximum over the lifetime total.
func peakListeners(entry *centovaEntry) *float64 {
	if entry.MaxListeners != nil {
		return toNumber(entry.MaxListeners)
	}
	return toNumber(entry.ListenerTotal)
}

func firstValidURL(candidates ...*string) *string {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if valid := sanitizeURL(*candidate); valid != nil {
			return valid
		}
	}
	return nil
}

// flagOnline interprets Centova's "server" field: "online" as a string, or
// plain truthiness otherwise.
func flagOnline(value any) bool {
	switch v := value.(type) {
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "online")
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}

// flagConnected interprets Centova's "source" field: "yes" as a string, or
// plain truthiness otherwise.
func flagConnected(value any) bool {
	switch v := value.(type) {
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "yes")
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}

// hostFromURL extracts the host from an entry URL; invalid URLs silently
// yield nil.
func hostFromURL(value *string) *string {
	if value == nil {
		return nil
	}
	parsed, err := url.Parse(strings.TrimSpace(*value))
	if err != nil || parsed.Host == "" {
		return nil
	}
	host := parsed.Host
	return &host
}
