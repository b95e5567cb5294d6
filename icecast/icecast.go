package icecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// icecastSource mirrors one entry of the "source" field in Icecast's JSON
// stats. Multi-mount servers report an array, single-mount servers a bare
// object.
type icecastSource struct {
	ListenURL         *string `json:"listenurl"`
	ServerName        *string `json:"server_name"`
	ServerDescription *string `json:"server_description"`
	ServerType        *string `json:"server_type"`
	AudioInfo         *string `json:"audio_info"`
	Bitrate           any     `json:"bitrate"`
	Channels          any     `json:"channels"`
	Genre             *string `json:"genre"`
	ListenerPeak      any     `json:"listener_peak"`
	Listeners         any     `json:"listeners"`
	Title             *string `json:"title"`
	StreamStart       *string `json:"stream_start"`
	StreamStartISO    *string `json:"stream_start_iso8601"`
	Mount             *string `json:"mount"`
}

// sourceField accepts either a single source object or an array of them.
type sourceField []icecastSource

func (s *sourceField) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var many []icecastSource
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*s = many
		return nil
	}
	var one icecastSource
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = sourceField{one}
	return nil
}

type icecastStats struct {
	Admin          *string      `json:"admin"`
	Host           *string      `json:"host"`
	Location       *string      `json:"location"`
	ServerID       *string      `json:"server_id"`
	ServerStart    *string      `json:"server_start"`
	ServerStartISO *string      `json:"server_start_iso8601"`
	Source         *sourceField `json:"source"`
}

type icecastEnvelope struct {
	IceStats *icecastStats `json:"icestats"`
}

// findSourceForMount picks the source whose listen URL contains the
// requested mount, or whose explicit mount equals it. When nothing matches
// the first source wins.
func findSourceForMount(sources *sourceField, mount string) *icecastSource {
	if sources == nil || len(*sources) == 0 {
		return nil
	}
	for i := range *sources {
		source := &(*sources)[i]
		if source.ListenURL != nil && strings.Contains(*source.ListenURL, mount) {
			return source
		}
		if source.Mount != nil && *source.Mount == mount {
			return source
		}
	}
	return &(*sources)[0]
}

// NormalizeIcecast validates and transforms a native Icecast stats payload
// into the canonical status. It fails with ErrInvalidIcecastPayload when the
// body does not even loosely match the stats shape; it never returns a
// half-populated status.
func NormalizeIcecast(payload []byte, opts Options) (*StreamStatus, error) {
	mount := opts.Mount
	if mount == "" {
		mount = DefaultMount
	}

	var envelope icecastEnvelope
	if err := unmarshalObject(payload, &envelope); err != nil {
		if errors.Is(err, ErrInvalidIcecastPayload) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidIcecastPayload, shapeDetail(err))
	}

	var source *icecastSource
	if envelope.IceStats != nil {
		source = findSourceForMount(envelope.IceStats.Source, mount)
	}

	status := &StreamStatus{
		IsOnline: source != nil,
		Mount:    mount,
	}

	if envelope.IceStats != nil {
		status.Server = ServerInfo{
			Host:     envelope.IceStats.Host,
			Admin:    envelope.IceStats.Admin,
			Location: envelope.IceStats.Location,
			Version:  envelope.IceStats.ServerID,
		}
	}

	if source != nil {
		status.StreamName = source.ServerName
		status.StreamDescription = source.ServerDescription
		status.ContentType = source.ServerType
		status.Genre = source.Genre

		if source.StreamStartISO != nil {
			status.StreamStarted = toISODate(*source.StreamStartISO)
		} else if source.StreamStart != nil {
			status.StreamStarted = toISODate(*source.StreamStart)
		}

		if source.ListenURL != nil {
			status.ListenURL = sanitizeURL(*source.ListenURL)
		}
		status.PlaybackURL = status.ListenURL

		var info audioInfo
		if source.AudioInfo != nil {
			info = parseAudioInfo(*source.AudioInfo)
		}
		if status.Bitrate = toNumber(source.Bitrate); status.Bitrate == nil {
			status.Bitrate = info.bitrate
		}
		status.Listeners = toNumber(source.Listeners)
		status.ListenerPeak = toNumber(source.ListenerPeak)

		nowPlaying, track := buildIcecastTrackInfo(source)
		status.CurrentlyPlaying = nowPlaying
		if status.CurrentlyPlaying == nil && source.Title != nil {
			status.CurrentlyPlaying = cleanString(*source.Title)
		}
		status.Track = track
	}

	if opts.IncludeRaw {
		status.Raw = rawEcho(payload)
	}
	return status, nil
}

// buildIcecastTrackInfo derives the now-playing label and track record from
// the source's free-text title. Icecast has no structured track metadata.
func buildIcecastTrackInfo(source *icecastSource) (*string, *TrackInfo) {
	title := ""
	if source.Title != nil {
		title = *source.Title
	}
	parsed := parseSongString(title)
	if parsed.combined == nil {
		return nil, nil
	}
	trackTitle := parsed.title
	if trackTitle == nil {
		trackTitle = parsed.combined
	}
	return parsed.combined, &TrackInfo{
		Artist: parsed.artist,
		Title:  trackTitle,
	}
}

// rawEcho decodes the original payload for diagnostic echoing. The result
// deep-equals the upstream envelope, unknown fields included.
func rawEcho(payload []byte) any {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil
	}
	return raw
}

// shapeDetail trims the noisy std-lib prefix off JSON type errors.
func shapeDetail(err error) string {
	return strings.TrimPrefix(err.Error(), "json: ")
}
