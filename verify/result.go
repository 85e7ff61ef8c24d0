package verify

import "github.com/bitrise-io/go-s3verify/checksum"

// Status is the outcome of comparing a local file with a remote object.
type Status int

const (
	// StatusUnknown means the comparison was inconclusive. It is never a match.
	StatusUnknown Status = iota
	StatusMatch
	StatusMismatch
)

func (s Status) String() string {
	switch s {
	case StatusMatch:
		return "match"
	case StatusMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Result ...
type Result struct {
	Path   string
	Key    string
	Local  string
	Remote string
	Status Status
	Reason string
}

// Verified reports whether the local file is known to be identical to the object.
func (r Result) Verified() bool {
	return r.Status == StatusMatch
}

func (r Result) decide() Result {
	switch {
	case r.Local == checksum.Unknown:
		r.Status = StatusUnknown
		r.Reason = "local file size doesn't match the part layout of the object"
	case r.Remote == "":
		r.Status = StatusUnknown
		r.Reason = "object has no checksum to compare with"
	case r.Local == r.Remote:
		r.Status = StatusMatch
		r.Reason = "checksums are equal"
	default:
		r.Status = StatusMismatch
		r.Reason = "checksums differ"
	}
	return r
}
