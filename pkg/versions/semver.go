/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package versions

import (
	"fmt"

	"github.com/blang/semver"
)

// Version is a totally ordered software version. The zero value
// represents an unknown version and sorts before every other one.
type Version struct {
	inner semver.Version
	set   bool
}

// Parse parses a version, accepting the tolerant forms "7", "7.1"
// and "v7.1.2" as well as full semantic versions
func Parse(value string) (Version, error) {
	parsed, err := semver.ParseTolerant(value)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", value, err)
	}
	return Version{inner: parsed, set: true}, nil
}

// MustParse is like Parse but panics on invalid input
func MustParse(value string) Version {
	result, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return result
}

// IsZero is true for the unknown version
func (v Version) IsZero() bool {
	return !v.set
}

// Major returns the major component of the version
func (v Version) Major() uint64 {
	return v.inner.Major
}

// Compare returns -1, 0 or 1 if v is respectively before, equal
// to or after other
func (v Version) Compare(other Version) int {
	switch {
	case !v.set && !other.set:
		return 0
	case !v.set:
		return -1
	case !other.set:
		return 1
	}
	return v.inner.Compare(other.inner)
}

// Less is true when v is strictly before other
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal is true when v and other denote the same version
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// String implements fmt.Stringer
func (v Version) String() string {
	if !v.set {
		return ""
	}
	return v.inner.String()
}

// MarshalText implements encoding.TextMarshaler
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty
// text decodes to the unknown version.
func (v *Version) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Oldest returns the oldest of the passed versions, or the unknown
// version when the list is empty
func Oldest(list []Version) Version {
	var result Version
	for idx, item := range list {
		if idx == 0 || item.Less(result) {
			result = item
		}
	}
	return result
}
