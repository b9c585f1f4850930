package stream

import "bytes"

// In-band terminal markers. ASCII text appended after the last PCM
// byte so a consumer that has already parsed the header can detect
// them by scanning recently received bytes as text. The payload before
// a marker is arbitrary binary PCM; a pathological sample sequence
// could in principle collide with the delimiter. That framing is
// inherited behavior and is kept as is.
const (
	jobIDPrefix = "<!--JOB_ID:"
	errorPrefix = "<!--ERROR:"
	markerClose = "-->"
)

// MarkerKind distinguishes terminal marker variants.
type MarkerKind int

const (
	MarkerNone MarkerKind = iota
	MarkerJobID
	MarkerError
)

// Marker is a decoded terminal marker.
type Marker struct {
	Kind  MarkerKind
	Value string // job id, or error message
	Start int    // byte offset of the marker within the scanned slice
}

// JobIDMarker encodes the success marker carrying a job id.
func JobIDMarker(id string) []byte {
	return []byte(jobIDPrefix + id + markerClose)
}

// ErrorMarker encodes the failure marker carrying a message.
func ErrorMarker(msg string) []byte {
	return []byte(errorPrefix + msg + markerClose)
}

// ScanMarker searches b for a terminal marker and decodes the first
// complete one found. Returns a Marker with Kind MarkerNone when b
// holds no complete marker.
func ScanMarker(b []byte) Marker {
	for _, candidate := range []struct {
		prefix string
		kind   MarkerKind
	}{
		{jobIDPrefix, MarkerJobID},
		{errorPrefix, MarkerError},
	} {
		start := bytes.Index(b, []byte(candidate.prefix))
		if start < 0 {
			continue
		}
		rest := b[start+len(candidate.prefix):]
		end := bytes.Index(rest, []byte(markerClose))
		if end < 0 {
			continue
		}
		return Marker{
			Kind:  candidate.kind,
			Value: string(rest[:end]),
			Start: start,
		}
	}
	return Marker{Kind: MarkerNone}
}
