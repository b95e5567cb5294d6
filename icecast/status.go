// Package icecast normalizes the two status payload dialects spoken by the
// upstream radio server (native Icecast JSON stats and the Centova RPC
// wrapper) into one canonical status record.
package icecast

import "errors"

// Default mount used when neither the payload nor the caller supplies one.
const DefaultMount = "/live"

var (
	// ErrInvalidIcecastPayload is returned when a payload does not even
	// loosely match the Icecast stats shape.
	ErrInvalidIcecastPayload = errors.New("invalid Icecast response payload")

	// ErrInvalidCentovaPayload is returned when a payload cannot be parsed
	// as a Centova RPC envelope.
	ErrInvalidCentovaPayload = errors.New("invalid Centova response payload")

	// ErrCentovaMissingData is returned when a Centova result envelope
	// carries no stream entries.
	ErrCentovaMissingData = errors.New("Centova response missing stream data")
)

// TrackInfo carries best-effort metadata about the currently playing track.
// Every field may be null on the wire.
type TrackInfo struct {
	Artist     *string `json:"artist"`
	Title      *string `json:"title"`
	Album      *string `json:"album"`
	ArtworkURL *string `json:"artworkUrl"`
}

// ServerInfo describes the upstream server itself.
type ServerInfo struct {
	Host     *string `json:"host"`
	Admin    *string `json:"admin"`
	Location *string `json:"location"`
	Version  *string `json:"version"`
}

// StreamStatus is the canonical, dialect-agnostic stream status. String
// fields are null rather than empty when absent, numeric fields are null
// rather than NaN when unparseable, and Track is null as a whole when none
// of its sub-fields carry information.
type StreamStatus struct {
	IsOnline          bool       `json:"isOnline"`
	Mount             string     `json:"mount"`
	StreamName        *string    `json:"streamName"`
	StreamDescription *string    `json:"streamDescription"`
	ContentType       *string    `json:"contentType"`
	StreamStarted     *string    `json:"streamStarted"`
	Bitrate           *float64   `json:"bitrate"`
	Listeners         *float64   `json:"listeners"`
	ListenerPeak      *float64   `json:"listenerPeak"`
	Genre             *string    `json:"genre"`
	CurrentlyPlaying  *string    `json:"currentlyPlaying"`
	Track             *TrackInfo `json:"track"`
	ListenURL         *string    `json:"listenUrl"`
	PlaybackURL       *string    `json:"playbackUrl"`
	Server            ServerInfo `json:"server"`
	Raw               any        `json:"raw,omitempty"`
}

// Options controls normalization of an Icecast payload.
type Options struct {
	// Mount is the requested mount path, used to pick a source on
	// multi-mount servers. Defaults to DefaultMount.
	Mount string
	// IncludeRaw echoes the original upstream envelope in the result for
	// diagnostics. Keep this off in production-like builds.
	IncludeRaw bool
}

// CentovaOptions controls normalization of a Centova payload.
type CentovaOptions struct {
	Options
	// Username is the panel account name; it is reported back as the
	// server admin since Centova does not expose one.
	Username string
}

// IsCentovaPayload reports whether a decoded JSON body looks like a Centova
// RPC envelope: a string "type" field together with an array "data" field.
// Anything else is treated as native Icecast stats.
func IsCentovaPayload(payload []byte) bool {
	probe := struct {
		Type *string         `json:"type"`
		Data *[]jsonRawProbe `json:"data"`
	}{}
	if err := unmarshalObject(payload, &probe); err != nil {
		return false
	}
	return probe.Type != nil && probe.Data != nil
}

type jsonRawProbe struct{}

func (*jsonRawProbe) UnmarshalJSON([]byte) error { return nil }
