package cli

import (
	"log/slog"

	"github.com/mwilck/btrfs-clone/internal/transport"
)

// newTransport builds the live btrfs-binary Transport. opts and log
// are accepted for parity with a future pluggable transport (e.g. a
// native-library implementation selected by flag) even though the
// CLI transport needs neither today.
func newTransport(opts *Options, log *slog.Logger) transport.Transport {
	return &transport.CLI{}
}
