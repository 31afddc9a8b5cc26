// Package coordinate implements the deterministic identifier format for
// managed secret payloads.
//
// A coordinate names exactly one versioned payload in the secret store:
//
//	airbyte_workspace_<owner-uuid>_secret_<base-uuid>_v<version>
//
// The (prefix, owner id, base id) triple is immutable across versions; only
// the version changes. Formatting and parsing are exact inverses.
package coordinate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	cserrors "github.com/systmms/confseal/internal/errors"
)

// Prefix is the fixed scope prefix every coordinate starts with. The
// annotation key in connector specifications uses the matching vocabulary
// (airbyte_secret), so the prefix is part of the persisted wire format and
// must never change.
const Prefix = "airbyte_workspace"

const versionMarker = "_v"

// SentinelOwner is the owner id used for coordinates minted outside any
// workspace context (e.g. a standalone connection-check probe). Payloads
// under the sentinel owner are ephemeral and subject to expiry sweeps.
var SentinelOwner = uuid.Nil

// Coordinate identifies one versioned secret payload in the managed store.
type Coordinate struct {
	// OwnerID scopes the coordinate to its owning workspace, or
	// SentinelOwner when there is none.
	OwnerID uuid.UUID

	// BaseID is the opaque unique id minted at first write. It never
	// changes across versions.
	BaseID uuid.UUID

	// Version starts at 1 and increments by one on every value change.
	Version int
}

// Mint creates a brand-new coordinate for ownerID with a fresh base id and
// version 1.
func Mint(ownerID uuid.UUID) Coordinate {
	return Coordinate{
		OwnerID: ownerID,
		BaseID:  uuid.New(),
		Version: 1,
	}
}

// NextVersion returns a copy of c with the version incremented, everything
// else unchanged.
func (c Coordinate) NextVersion() Coordinate {
	c.Version++
	return c
}

// IsEphemeral reports whether the coordinate belongs to the sentinel owner
// and is therefore subject to expiry.
func (c Coordinate) IsEphemeral() bool {
	return c.OwnerID == SentinelOwner
}

// String returns the deterministic wire form of the coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("%s_%s_secret_%s%s%d", Prefix, c.OwnerID, c.BaseID, versionMarker, c.Version)
}

// Parse decodes a coordinate string. It is the exact inverse of String and
// fails with MalformedCoordinateError on any deviation from the grammar.
func Parse(s string) (Coordinate, error) {
	rest, ok := strings.CutPrefix(s, Prefix+"_")
	if !ok {
		return Coordinate{}, cserrors.MalformedCoordinateError{
			Value:   s,
			Message: fmt.Sprintf("missing '%s' prefix", Prefix),
		}
	}

	// UUIDs contain no underscores, so the remainder splits into exactly
	// four segments: owner, "secret", base, "v<version>".
	parts := strings.Split(rest, "_")
	if len(parts) != 4 {
		return Coordinate{}, cserrors.MalformedCoordinateError{
			Value:   s,
			Message: fmt.Sprintf("expected 4 segments after prefix, got %d", len(parts)),
		}
	}
	if parts[1] != "secret" {
		return Coordinate{}, cserrors.MalformedCoordinateError{
			Value:   s,
			Message: "missing 'secret' segment",
		}
	}

	ownerID, err := parseUUID(parts[0])
	if err != nil {
		return Coordinate{}, cserrors.MalformedCoordinateError{
			Value:   s,
			Message: "owner id is not a canonical UUID",
		}
	}

	baseID, err := parseUUID(parts[2])
	if err != nil {
		return Coordinate{}, cserrors.MalformedCoordinateError{
			Value:   s,
			Message: "base id is not a canonical UUID",
		}
	}

	version, err := parseVersion(parts[3])
	if err != nil {
		return Coordinate{}, cserrors.MalformedCoordinateError{
			Value:   s,
			Message: err.Error(),
		}
	}

	return Coordinate{
		OwnerID: ownerID,
		BaseID:  baseID,
		Version: version,
	}, nil
}

// parseUUID accepts only the canonical lowercase dashed form String emits.
// uuid.Parse alone also tolerates braced, urn-prefixed, undashed, and
// uppercase encodings, which would make Parse accept strings String can
// never produce.
func parseUUID(s string) (uuid.UUID, error) {
	if len(s) != 36 || s != strings.ToLower(s) {
		return uuid.UUID{}, fmt.Errorf("non-canonical UUID encoding")
	}
	return uuid.Parse(s)
}

// parseVersion decodes the "v<version>" segment: bare decimal digits with
// no leading zeros, no sign, no whitespace.
func parseVersion(segment string) (int, error) {
	digits, ok := strings.CutPrefix(segment, "v")
	if !ok {
		return 0, fmt.Errorf("version segment must start with 'v'")
	}
	if digits == "" {
		return 0, fmt.Errorf("version segment has no digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("version is not a positive integer")
		}
	}
	if strings.HasPrefix(digits, "0") {
		return 0, fmt.Errorf("version must have no leading zeros")
	}
	version, err := strconv.Atoi(digits)
	if err != nil || version < 1 {
		return 0, fmt.Errorf("version is not a positive integer")
	}
	return version, nil
}
