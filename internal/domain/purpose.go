package domain

import (
	"fmt"
	"strings"
)

// Purpose is the media role an agent and all of its workers serve.
type Purpose string

const (
	PurposeWebRTC Purpose = "webrtc"
	PurposeRTSP   Purpose = "rtsp"
	PurposeFile   Purpose = "file"
	PurposeAudio  Purpose = "audio"
	PurposeVideo  Purpose = "video"
)

// Purposes lists every known purpose in a stable order.
func Purposes() []Purpose {
	return []Purpose{PurposeWebRTC, PurposeRTSP, PurposeFile, PurposeAudio, PurposeVideo}
}

// ParsePurpose maps a configured value onto the closed purpose enumeration.
func ParsePurpose(value string) (Purpose, error) {
	p := Purpose(strings.ToLower(strings.TrimSpace(value)))
	if p.Valid() {
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown purpose %q", ErrInvalidConfig, value)
}

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeWebRTC, PurposeRTSP, PurposeFile, PurposeAudio, PurposeVideo:
		return true
	default:
		return false
	}
}

// Reuse reports whether workers of this purpose may be shared between requests
// for the same room. Audio and video mixers hold per-request state and are
// never reused.
func (p Purpose) Reuse() bool {
	return p != PurposeAudio && p != PurposeVideo
}

func (p Purpose) String() string {
	return string(p)
}
