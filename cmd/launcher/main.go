// Command launcher runs the planner with a time limit and folds its own
// stage and the planner's exit code into one status:
//
//	launcher serverName dbName service_id calc_time
//
// The status is stage*10000 + planner exit code, with stage 1 usage,
// 2 start failure, 3 timeout, 4 planner failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"courierdispatch/internal/config"
	"courierdispatch/internal/logger"
)

const (
	stageUsage = 1 + iota
	stageStart
	stageTimeout
	stageChild
)

func status(stage, child int) int {
	if child < 0 {
		child = 0
	}
	return stage*10000 + child
}

type launch struct {
	Binary  string
	Prefix  []string // arguments placed before the planner's own
	Timeout time.Duration
	Env     []string
	Stdout  io.Writer
	Stderr  io.Writer
}

func (l launch) run(ctx context.Context, args []string) int {
	if len(args) != 4 {
		fmt.Fprintln(l.Stderr, "usage: launcher serverName dbName service_id calc_time")
		return status(stageUsage, 0)
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, l.Binary, append(append([]string(nil), l.Prefix...), args...)...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if l.Env != nil {
		cmd.Env = l.Env
	}
	started := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Errorw("planner start failed", "binary", l.Binary, "error", err)
		return status(stageStart, 0)
	}
	err := cmd.Wait()
	code := cmd.ProcessState.ExitCode()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logger.Errorw("planner timed out", "timeout", l.Timeout, "exit", code)
		return status(stageTimeout, code)
	case err != nil:
		logger.Errorw("planner failed", "exit", code, "elapsed", time.Since(started), "error", err)
		return status(stageChild, code)
	}
	logger.Infow("planner finished", "elapsed", time.Since(started))
	return 0
}

// resolveBinary prefers a planner next to the launcher executable.
func resolveBinary(name string) string {
	if filepath.IsAbs(name) || filepath.Base(name) != name {
		return name
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(status(stageStart, 0))
	}
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	l := launch{
		Binary:  resolveBinary(cfg.Planner.Binary),
		Timeout: time.Duration(cfg.Planner.TimeoutSeconds) * time.Second,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	code := l.run(context.Background(), os.Args[1:])
	logger.Sync()
	if code != 0 {
		// POSIX truncates exit statuses to a byte; print the full value.
		fmt.Fprintf(os.Stderr, "launcher: status %d\n", code)
	}
	os.Exit(code)
}
