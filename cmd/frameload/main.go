package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/frameload/internal/cli"
	"github.com/koustreak/frameload/internal/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "frameload:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes bad input from unreachable or failing backends.
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput, errs.ErrKindNotFound:
		return 2
	case errs.ErrKindConnectionFailed, errs.ErrKindPermissionDenied, errs.ErrKindTimeout:
		return 3
	case errs.ErrKindCyclicDependency, errs.ErrKindSchemaInconsistency, errs.ErrKindIntrospection:
		return 4
	case errs.ErrKindDuplicateTempID, errs.ErrKindUnresolvedReference, errs.ErrKindInsertFailed,
		errs.ErrKindConstraintViolation:
		return 5
	default:
		return 1
	}
}
