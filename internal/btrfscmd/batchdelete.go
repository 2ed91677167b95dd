package btrfscmd

import (
	"context"
	"errors"
	"os"
	"syscall"
)

// DeleteOp is one subvolume to delete, with its own error slot so a
// batch can report per-path results after a possibly-batched
// invocation. Modeled on zrepl's DestroySnapOp, generalized from "one
// fs@snap per op" to "one subvolume path per op" and from zfs
// destroy's comma-joined batching to btrfs subvolume delete's
// multi-argument batching.
type DeleteOp struct {
	Path   string
	ErrOut *error
}

// BatchDelete deletes every op's subvolume, batching them into as few
// `btrfs subvolume delete` invocations as possible and transparently
// halving the batch on E2BIG, same strategy as zrepl's destroy
// batching for zfs destroy argument lists.
func BatchDelete(ctx context.Context, ops []*DeleteOp) {
	if len(ops) == 0 {
		return
	}
	if len(ops) == 1 {
		*ops[0].ErrOut = DeleteSubvolume(ctx, ops[0].Path)
		return
	}

	paths := make([]string, len(ops))
	for i, op := range ops {
		paths[i] = op.Path
	}
	args := append([]string{"subvolume", "delete"}, paths...)
	if _, err := Run(ctx, args...); err == nil {
		setErr(ops, nil)
		return
	} else if isE2BIG(err) {
		mid := len(ops) / 2
		BatchDelete(ctx, ops[:mid])
		BatchDelete(ctx, ops[mid:])
		return
	}

	// Batch failed for some other reason (e.g. one path gone already);
	// fall back to sequential deletes so the rest still make progress.
	for _, op := range ops {
		*op.ErrOut = DeleteSubvolume(ctx, op.Path)
	}
}

func setErr(ops []*DeleteOp, err error) {
	for _, op := range ops {
		*op.ErrOut = err
	}
}

func isE2BIG(err error) bool {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return errors.Is(pe.Err, syscall.E2BIG)
	}
	var ce *CommandError
	return errors.As(err, &ce) && errors.Is(ce.Err, syscall.E2BIG)
}
