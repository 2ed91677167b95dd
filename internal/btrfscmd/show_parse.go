package btrfscmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// parseShow parses the text block produced by `btrfs subvolume show
// <path>`, e.g.:
//
//	subvolX
//		Name:                   subvolX
//		UUID:                   8f2caa19-...
//		Parent UUID:            -
//		Received UUID:          -
//		Creation time:          2024-01-01 00:00:00 +0000
//		Subvolume ID:           261
//		Generation:             1234
//		Gen at creation:        1233
//		Parent ID:              5
//		Top level ID:           5
//		Flags:                  readonly
//		Snapshot(s):
//
// A required field missing from the block is an enumeration error
// (spec §4.1: "missing required fields fail enumeration").
func parseShow(path string, block []byte) (*subvolume.Subvolume, error) {
	fields := map[string]string{}
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		fields[key] = val
	}

	get := func(key string) (string, error) {
		v, ok := fields[key]
		if !ok || v == "" {
			return "", fmt.Errorf("subvolume show %q: missing required field %q", path, key)
		}
		return v, nil
	}

	idStr, err := get("Subvolume ID")
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("subvolume show %q: parse Subvolume ID: %w", path, err)
	}

	parentIDStr, err := get("Parent ID")
	if err != nil {
		return nil, err
	}
	parentID, err := strconv.ParseUint(parentIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("subvolume show %q: parse Parent ID: %w", path, err)
	}

	uuidStr, err := get("UUID")
	if err != nil {
		return nil, err
	}
	subUUID, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("subvolume show %q: parse UUID: %w", path, err)
	}

	genStr, err := get("Generation")
	if err != nil {
		return nil, err
	}
	gen, err := strconv.ParseUint(genStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("subvolume show %q: parse Generation: %w", path, err)
	}

	ogenStr, err := get("Gen at creation")
	if err != nil {
		return nil, err
	}
	ogen, err := strconv.ParseUint(ogenStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("subvolume show %q: parse Gen at creation: %w", path, err)
	}

	var parentUUID uuid.UUID
	if pu, ok := fields["Parent UUID"]; ok && pu != "-" && pu != "" {
		parentUUID, err = uuid.Parse(pu)
		if err != nil {
			return nil, fmt.Errorf("subvolume show %q: parse Parent UUID: %w", path, err)
		}
	}

	ro := false
	if flags, ok := fields["Flags"]; ok {
		for _, f := range strings.Split(flags, ",") {
			if strings.TrimSpace(f) == "readonly" {
				ro = true
			}
		}
	}

	return &subvolume.Subvolume{
		Path:       path,
		ID:         id,
		ParentID:   parentID,
		UUID:       subUUID,
		ParentUUID: parentUUID,
		Gen:        gen,
		OGen:       ogen,
		RO:         ro,
	}, nil
}
