// Command btrfs-clone replicates a btrfs filesystem's subvolume tree
// from one mounted instance to another.
package main

import (
	"os"
	"runtime"

	"github.com/mwilck/btrfs-clone/internal/cli"
)

func main() {
	// Mount namespaces are per-OS-thread; mountns.Unshare must run on a
	// thread that is never handed back to the Go runtime's scheduler
	// for other goroutines.
	runtime.LockOSThread()
	os.Exit(cli.Run(os.Args[1:]))
}
