package models

import (
	"fmt"
	"strings"
)

// Quality-flag kinds recorded against a scan during an ingestion pass. Flags
// scoped to a single image carry the angle as a ":<angle>" suffix.
const (
	FlagMissingStorage   = "missing_storage"
	FlagMissingObject    = "missing_object"
	FlagChecksumMismatch = "checksum_mismatch"
	FlagBlur             = "blur"
	FlagLowLight         = "low_light"
	FlagPose             = "pose"
	FlagProcessingError  = "processing_error"
	FlagMissingAngle     = "missing_angle"
)

// AngleFlag formats a per-image quality flag.
func AngleFlag(kind string, angle Angle) string {
	return fmt.Sprintf("%s:%s", kind, angle)
}

// FlagKind returns the kind portion of a flag (everything before the angle
// suffix, or the whole flag if it has none).
func FlagKind(flag string) string {
	if i := strings.IndexByte(flag, ':'); i >= 0 {
		return flag[:i]
	}
	return flag
}

// FlagSet is an insertion-ordered set of quality flags. Duplicates collapse,
// and Values always reflects first-insertion order so repeated passes over the
// same evidence produce identical output.
type FlagSet struct {
	seen  map[string]struct{}
	flags []string
}

func NewFlagSet() *FlagSet {
	return &FlagSet{seen: make(map[string]struct{})}
}

// Add inserts a flag, ignoring duplicates.
func (s *FlagSet) Add(flag string) {
	if _, ok := s.seen[flag]; ok {
		return
	}
	s.seen[flag] = struct{}{}
	s.flags = append(s.flags, flag)
}

// AddAll inserts every flag in order.
func (s *FlagSet) AddAll(flags []string) {
	for _, f := range flags {
		s.Add(f)
	}
}

// HasKind reports whether any flag of the given kind is present.
func (s *FlagSet) HasKind(kind string) bool {
	for _, f := range s.flags {
		if FlagKind(f) == kind {
			return true
		}
	}
	return false
}

// Values returns the flags in insertion order. The slice is a copy.
func (s *FlagSet) Values() []string {
	out := make([]string, len(s.flags))
	copy(out, s.flags)
	return out
}

func (s *FlagSet) Len() int {
	return len(s.flags)
}

// ResolveStatus derives a scan's status from the aggregated quality flags and
// the missing-angle set. Checksum failures dominate: a scan with any
// checksum_mismatch flag is rejected no matter how complete it is. Blur, low
// light and pose flags are advisory for downstream review and never block a
// scan from completing.
func ResolveStatus(flags []string, missing []Angle) ScanStatus {
	for _, f := range flags {
		if FlagKind(f) == FlagChecksumMismatch {
			return ScanStatusRejected
		}
	}
	if len(missing) > 0 {
		return ScanStatusProcessing
	}
	return ScanStatusComplete
}
