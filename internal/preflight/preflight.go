// Package preflight implements the pre-flight conflict check (spec
// §4 Non-goals / §7 "Pre-flight conflict") and the `check` subcommand
// built on it, adapted from zrepl's monitoring-plugin snapshot checks
// to this tool's single conflict: SOURCE and TARGET must not be the
// same filesystem, and TARGET must be empty unless overridden.
package preflight

import (
	"fmt"
	"os"

	"github.com/dsh2dsh/go-monitoringplugin/v2"
)

// Conflict describes why a run should not proceed without --force.
type Conflict struct {
	SameFilesystem bool
	TargetNonEmpty bool
}

func (c *Conflict) Error() string {
	switch {
	case c.SameFilesystem && c.TargetNonEmpty:
		return "source and target are the same filesystem, and target is not empty"
	case c.SameFilesystem:
		return "source and target are the same filesystem"
	case c.TargetNonEmpty:
		return "target is not empty"
	default:
		return "no conflict"
	}
}

// Any reports whether either condition fired.
func (c *Conflict) Any() bool {
	return c != nil && (c.SameFilesystem || c.TargetNonEmpty)
}

// Check runs the pre-flight conflict check described in spec §7:
// same FS UUID between source and target, or a non-empty target
// directory.
func Check(sourceFSUUID, targetFSUUID, targetMount string) (*Conflict, error) {
	entries, err := os.ReadDir(targetMount)
	if err != nil {
		return nil, fmt.Errorf("read target mount %s: %w", targetMount, err)
	}
	c := &Conflict{
		SameFilesystem: sourceFSUUID != "" && sourceFSUUID == targetFSUUID,
		TargetNonEmpty: len(entries) > 0,
	}
	if !c.Any() {
		return nil, nil
	}
	return c, nil
}

// RunCheck implements the `check` subcommand: a Nagios-style plugin
// reporting OK/WARNING/CRITICAL exit codes via go-monitoringplugin,
// so this tool can be wired into the same monitoring stack as a
// zrepl job's own monitor (client/monitor).
func RunCheck(sourceFSUUID, targetFSUUID, targetMount string) *monitoringplugin.Response {
	resp := monitoringplugin.NewResponse("btrfs-clone preflight")

	conflict, err := Check(sourceFSUUID, targetFSUUID, targetMount)
	if err != nil {
		resp.UpdateStatus(monitoringplugin.UNKNOWN, err.Error())
		return resp
	}
	if conflict == nil {
		resp.UpdateStatus(monitoringplugin.OK, "no pre-flight conflicts")
		return resp
	}

	if conflict.SameFilesystem {
		resp.UpdateStatus(monitoringplugin.CRITICAL, "source and target share filesystem uuid "+sourceFSUUID)
	}
	if conflict.TargetNonEmpty {
		resp.UpdateStatus(monitoringplugin.WARNING, "target "+targetMount+" is not empty")
	}
	return resp
}
