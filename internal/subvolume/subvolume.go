// Package subvolume holds the immutable value objects describing one
// source subvolume and the on-disk enumeration that produces them.
package subvolume

import (
	"fmt"

	"github.com/google/uuid"
)

// TopLevelID is the object id of the unnameable top-of-filesystem
// pseudo-subvolume that contains all others.
const TopLevelID = 5

// Subvolume is an immutable snapshot of FS metadata for one source
// subvolume, as produced by Enumerate.
type Subvolume struct {
	// Path is the tree-position path relative to the source mount.
	Path string
	// ID is the integer identifier, unique within the source FS.
	ID uint64
	// ParentID is the id of the enclosing subvolume in the directory
	// tree (not the snapshot lineage).
	ParentID uint64
	// UUID is this subvolume's stable identity.
	UUID uuid.UUID
	// ParentUUID is the origin subvolume of the snapshot lineage; the
	// zero UUID means "absent" (not a snapshot, or origin deleted).
	ParentUUID uuid.UUID
	// Gen is the current transaction generation.
	Gen uint64
	// OGen is the generation at creation.
	OGen uint64
	// RO is whether the subvolume was read-only at enumeration time.
	RO bool
}

// HasParentUUID reports whether both UUID and ParentUUID are present
// (non-zero).
func (s *Subvolume) HasParentUUID() bool {
	return s != nil && s.UUID != uuid.Nil && s.ParentUUID != uuid.Nil
}

// Static reports whether the subvolume is effectively untouched since
// creation: a classic read-only snapshot.
func (s *Subvolume) Static() bool {
	return s.Gen-s.OGen <= 1
}

// Validate checks the per-record invariants from spec §3. Of the
// cross-subvolume invariants, Enumerate checks only id and uuid
// uniqueness.
func (s *Subvolume) Validate() error {
	if s.UUID == uuid.Nil {
		return fmt.Errorf("subvolume %d (%s): uuid must not be empty", s.ID, s.Path)
	}
	if s.Gen < s.OGen {
		return fmt.Errorf("subvolume %d (%s): gen %d < ogen %d", s.ID, s.Path, s.Gen, s.OGen)
	}
	return nil
}

func (s *Subvolume) String() string {
	return fmt.Sprintf("%s(id=%d uuid=%s)", s.Path, s.ID, s.UUID)
}
