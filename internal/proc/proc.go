// Package proc spawns child processes for the exec command,
// streaming their stdout and stderr line-by-line into the structured
// logger instead of letting them write to the terminal directly.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"initium/internal/logging"
)

// Run starts args[0] with the remaining args, in dir when non-empty, and
// waits for it to exit. Each stdout/stderr line is logged at info level
// with a "stream" key. Returns the child's exit code; an error means the
// child could not be started or waited on at all.
func Run(ctx context.Context, log *logging.Logger, args []string, dir string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("proc: command is required")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("proc: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("proc: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("proc: starting command %q: %w", args[0], err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(log, stdout, "stdout")
	}()
	go func() {
		defer wg.Done()
		streamLines(log, stderr, "stderr")
	}()
	wg.Wait()

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("proc: waiting for command: %w", err)
}

func streamLines(log *logging.Logger, r io.Reader, stream string) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		log.Info(sc.Text(), "stream", stream)
	}
}
