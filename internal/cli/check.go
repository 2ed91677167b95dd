package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwilck/btrfs-clone/internal/mountns"
	"github.com/mwilck/btrfs-clone/internal/preflight"
)

// newCheckCommand implements the supplemented `check` subcommand: a
// Nagios-style plugin wrapping the same pre-flight conflict check Run
// performs before cloning, so the tool can be polled by the same
// monitoring stack zrepl jobs report into (client/monitor).
func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <source_mount> <target_mount>",
		Short: "Report pre-flight conflicts as a Nagios-style monitoring plugin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args[0], args[1])
		},
	}
}

func runCheck(sourceMount, targetMount string) error {
	provider := mountns.NewProvider()

	sourceRoot, err := provider.Mount(sourceMount)
	if err != nil {
		return fmt.Errorf("resolve source filesystem uuid: %w", err)
	}
	defer sourceRoot.Close() //nolint:errcheck

	targetRoot, err := provider.Mount(targetMount)
	if err != nil {
		return fmt.Errorf("resolve target filesystem uuid: %w", err)
	}
	defer targetRoot.Close() //nolint:errcheck

	resp := preflight.RunCheck(sourceRoot.FSUUID, targetRoot.FSUUID, targetMount)
	resp.OutputAndExit()
	return nil
}
