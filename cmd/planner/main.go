// Command planner builds one service day plan from Postgres and stores it.
//
//	planner serverName dbName service_id calc_time
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"courierdispatch/internal/config"
	"courierdispatch/internal/dispatch"
	"courierdispatch/internal/logger"
	"courierdispatch/internal/model"
	"courierdispatch/internal/store"
)

const (
	exitOK = iota
	exitUsage
	exitConfig
	exitLoad
	exitNotCreated
	exitSave
)

const usage = "usage: planner serverName dbName service_id calc_time"

type invocation struct {
	server, db string
	serviceID  int
	calc       time.Time
}

func parseArgs(args []string) (invocation, error) {
	if len(args) != 4 {
		return invocation{}, errors.New(usage)
	}
	id, err := strconv.Atoi(args[2])
	if err != nil || id <= 0 {
		return invocation{}, fmt.Errorf("service_id must be a positive integer: %q", args[2])
	}
	calc, err := model.ParseCalcTime(args[3])
	if err != nil {
		return invocation{}, err
	}
	return invocation{server: args[0], db: args[1], serviceID: id, calc: calc}, nil
}

// exitCode maps a plan error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, dispatch.ErrLoad):
		return exitLoad
	case errors.Is(err, dispatch.ErrSave):
		return exitSave
	}
	return exitNotCreated
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	inv, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()

	dsn, err := cfg.Database.DSNFor(inv.server, inv.db)
	if err != nil || dsn == "" {
		logger.Errorw("database dsn unavailable", "error", err)
		return exitConfig
	}
	st, err := store.NewPostgres(dsn)
	if err != nil {
		logger.Errorw("connect failed", "server", inv.server, "db", inv.db, "error", err)
		return exitLoad
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		logger.Errorw("migrate failed", "error", err)
		return exitLoad
	}
	svc, err := dispatch.New(cfg, st, nil)
	if err != nil {
		logger.Errorw("planner setup failed", "error", err)
		return exitConfig
	}

	planDate := inv.calc.Format(time.DateOnly)
	plan, _, err := svc.BuildPlan(ctx, model.PlanRequest{
		ServiceID: inv.serviceID,
		PlanDate:  planDate,
		CalcTime:  inv.calc.Format(time.RFC3339),
	})
	if err != nil {
		logger.Errorw("plan failed", "service", inv.serviceID, "date", planDate, "error", err)
		return exitCode(err)
	}
	logger.Infow("plan saved", "plan", plan.ID, "service", inv.serviceID, "date", planDate,
		"shipments", len(plan.Shipments), "unshipped", len(plan.Unshipped), "cost", plan.TotalCost.String())
	return exitOK
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
