package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/bundlefetch/internal/blobstore"
	"github.com/ligustah/bundlefetch/pkg/bundle"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitFetchFailed  = 3
	ExitNotFound     = 4
	ExitWrongKind    = 5
	ExitStorageError = 6
	ExitInterrupted  = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[bundlefetch] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// execute runs the command line in args and returns the process exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	code := exitCode(ctx, err)
	if code == ExitInterrupted {
		fmt.Fprintln(stderr, "[bundlefetch] Interrupted")
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	if code == ExitInvalidArgs {
		fmt.Fprintln(stderr, "Run 'bundlefetch --help' for usage.")
	}
	return code
}

// exitError carries an explicit exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: ExitInvalidArgs, err: err}
}

func usageErrorf(format string, args ...any) error {
	return usageError(fmt.Errorf(format, args...))
}

func storageError(err error) error {
	return &exitError{code: ExitStorageError, err: err}
}

func exitCode(ctx context.Context, err error) int {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	switch bundle.KindOf(err) {
	case bundle.FetchFailed:
		return ExitFetchFailed
	case bundle.NotFound:
		return ExitNotFound
	case bundle.WrongKind:
		return ExitWrongKind
	}

	if errors.Is(err, bundle.ErrNotFound) || errors.Is(err, blobstore.ErrNotFound) {
		return ExitNotFound
	}
	// Cobra reports unknown commands and argument count errors as plain
	// errors.
	msg := err.Error()
	if strings.HasPrefix(msg, "unknown command") || strings.Contains(msg, "arg(s)") {
		return ExitInvalidArgs
	}
	return ExitGeneralError
}
