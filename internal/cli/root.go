package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/mwilck/btrfs-clone/internal/cloneprogress"
	"github.com/mwilck/btrfs-clone/internal/logging"
	"github.com/mwilck/btrfs-clone/internal/metrics"
	"github.com/mwilck/btrfs-clone/internal/mountns"
	"github.com/mwilck/btrfs-clone/internal/orchestrator"
	"github.com/mwilck/btrfs-clone/internal/report"
)

// Run builds and executes the cobra command tree for args (typically
// os.Args[1:]); it is the sole entry point cmd/btrfs-clone calls.
func Run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "btrfs-clone:", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "btrfs-clone <source_mount> <target_mount>",
		Short: "Replicate a btrfs filesystem's subvolume tree to another mount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SourceMount, opts.TargetMount = args[0], args[1]
			return runClone(cmd.Context(), opts)
		},
	}
	bindFlags(root, opts)
	root.SetFlagErrorFunc(suggestOnUnknownFlag)
	root.AddCommand(newCheckCommand())
	return root
}

func bindFlags(cmd *cobra.Command, opts *Options) {
	f := cmd.Flags()
	f.StringVar(&opts.Strategy, "strategy", "generation",
		"cloning strategy: parent, bruteforce, snapshot, chronological, generation")
	f.BoolVar(&opts.Toplevel, "toplevel", false, "keep the bootstrap snapshot intact instead of promoting it into the target root")
	f.BoolVar(&opts.Force, "force", false, "allow identical-uuid or non-empty target, after a 10-second abort window")
	f.BoolVar(&opts.DryRun, "dry-run", false, "print planned external invocations without executing them")
	f.BoolVar(&opts.IgnoreErrors, "ignore-errors", false, "downgrade transport failures to a warning and continue")
	f.StringVar(&opts.SnapBase, "snap-base", "", "fixed name for the staging directory (random if unset)")
	f.CountVarP(&opts.Verbose, "verbose", "v", "increase log verbosity (repeatable)")
	f.BoolVar(&opts.NoUnshare, "no-unshare", false, "internal re-entry flag after mount-namespace unsharing")
	f.IntVar(&opts.LogCompressLevel, "log-compresslevel", 0, "zstd compression level for saved send/receive logs (0 disables)")
	f.StringVar(&opts.LogDir, "log-dir", "", "directory to save per-subvolume send/receive logs in")
}

func runClone(ctx context.Context, opts *Options) error {
	if err := opts.ApplyDefaults(); err != nil {
		return fmt.Errorf("apply option defaults: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	log := logging.New(os.Stderr, logging.Verbosity(opts.Verbose))

	if !opts.NoUnshare {
		if err := mountns.Unshare(); err != nil {
			return fmt.Errorf("unshare mount namespace: %w", err)
		}
	}

	// Mount both top-of-filesystems concurrently, the same
	// sender/receiver-in-parallel shape replication_logic.go uses for
	// its ListFilesystems/ListFilesystemVersions round trips.
	provider := mountns.NewProvider()
	var sourceRoot, targetRoot *mountns.Mount
	var g errgroup.Group
	g.Go(func() error {
		m, err := provider.Mount(opts.SourceMount)
		if err != nil {
			return fmt.Errorf("mount source top-of-filesystem: %w", err)
		}
		sourceRoot = m
		return nil
	})
	g.Go(func() error {
		m, err := provider.Mount(opts.TargetMount)
		if err != nil {
			return fmt.Errorf("mount target top-of-filesystem: %w", err)
		}
		targetRoot = m
		return nil
	})
	if err := g.Wait(); err != nil {
		if sourceRoot != nil {
			sourceRoot.Close() //nolint:errcheck
		}
		if targetRoot != nil {
			targetRoot.Close() //nolint:errcheck
		}
		return err
	}
	defer func() {
		if err := sourceRoot.Close(); err != nil {
			log.Error("failed to tear down source root mount", slog.Any("err", err))
		}
	}()
	defer func() {
		if err := targetRoot.Close(); err != nil {
			log.Error("failed to tear down target root mount", slog.Any("err", err))
		}
	}()

	reg := metrics.New()
	progress := cloneprogress.New(log)
	defer progress.Close()

	orchOpts := orchestrator.Options{
		SourceMount:      sourceRoot.Path,
		TargetMount:      targetRoot.Path,
		Strategy:         opts.StrategyKind(),
		ToplevelPromote:  !opts.Toplevel,
		Force:            opts.Force,
		DryRun:           opts.DryRun,
		IgnoreErrors:     opts.IgnoreErrors,
		SnapBase:         opts.SnapBase,
		LogDir:           opts.LogDir,
		LogCompressLevel: opts.LogCompressLevel,
		AbortWindow:      opts.AbortWindow,
	}

	orch := orchestrator.New(orchOpts, log, reg, progress, newTransport(opts, log))
	result, err := orch.Run(ctx, sourceRoot.FSUUID, targetRoot.FSUUID)
	if err != nil {
		return err
	}

	log.Info("run complete", slog.String("summary", result.Summary.String()))
	if len(result.Stranded) > 0 {
		log.Warn("subvolumes stranded by staging commit", slog.Int("count", len(result.Stranded)))
	}

	if opts.DryRun {
		if err := diffAndSavePlan(opts.LogDir, result.Plan, log); err != nil {
			log.Warn("failed to diff/save dry-run plan", slog.Any("err", err))
		}
	}

	if dump, err := reg.Dump(); err != nil {
		log.Error("failed to render metrics", slog.Any("err", err))
	} else {
		log.Debug("metrics", slog.String("dump", dump))
	}

	return nil
}

// planFileName is the fixed name of the saved dry-run plan, written
// inside the transfer log directory (spec supplement: "Dry-run plan
// diffing") so a later `--dry-run` run can diff against it.
const planFileName = "btrfs-clone-plan.json"

// diffAndSavePlan implements the dry-run plan diff: if a previously
// saved plan is found in logDir, it is diffed against plan via
// report.DiffPlan and any change is logged; plan then overwrites the
// saved file for the next run to diff against. logDir "" (no
// --log-dir given) falls back to the current working directory, the
// same "working directory" default spec.md gives optional log files.
func diffAndSavePlan(logDir string, plan []report.PlanStep, log *slog.Logger) error {
	dir := logDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plan directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, planFileName)

	var previous []report.PlanStep
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &previous); err != nil {
			return fmt.Errorf("parse previous plan %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read previous plan %s: %w", path, err)
	}

	if previous != nil {
		diff, err := report.DiffPlan(previous, plan)
		if err != nil {
			return fmt.Errorf("diff dry-run plan: %w", err)
		}
		if diff == "" {
			log.Info("dry-run plan unchanged since last run")
		} else {
			log.Info("dry-run plan changed since last run", slog.String("diff", diff))
		}
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dry-run plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dry-run plan %s: %w", path, err)
	}
	return nil
}

// suggestOnUnknownFlag appends a "did you mean" hint using fuzzy
// matching against the command's own flag names, the same shape as
// git/cobra's builtin command-name suggestions but applied to flags.
func suggestOnUnknownFlag(cmd *cobra.Command, err error) error {
	const prefix = "unknown flag: --"
	msg := err.Error()
	if len(msg) <= len(prefix) || msg[:len(prefix)] != prefix {
		return err
	}
	typo := msg[len(prefix):]

	var names []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) { names = append(names, f.Name) })
	matches := fuzzy.Find(typo, names)
	if len(matches) == 0 {
		return err
	}
	return fmt.Errorf("%w (did you mean --%s?)", err, matches[0].Str)
}
