package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/internal/db"
	"bikeshare-monitor/internal/logging"
	"bikeshare-monitor/internal/migrate"
	"bikeshare-monitor/internal/modules/monitoring/repository"
	"bikeshare-monitor/internal/mqtt"
	"bikeshare-monitor/internal/simulate"
)

const usage = `usage: %s <command> [flags]
  migrate   apply pending schema migrations
  status    list migrations and whether they are applied
  seed      write simulated rides and predictions into the database
  publish   publish simulated rides and predictions over MQTT
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, "dev", "tools")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "migrate", "status", "seed":
		err = withDB(cfg, func(conn *sql.DB) error {
			switch cmd {
			case "migrate":
				return runMigrate(ctx, conn, logger)
			case "status":
				return runStatus(ctx, conn)
			default:
				return runSeed(ctx, conn, args, logger)
			}
		})
	case "publish":
		err = runPublish(ctx, cfg, args, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func withDB(cfg config.Config, fn func(conn *sql.DB) error) error {
	conn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()
	return fn(conn)
}

func runMigrate(ctx context.Context, conn *sql.DB, logger *slog.Logger) error {
	n, err := migrate.Run(ctx, conn, logger)
	if err != nil {
		return err
	}
	fmt.Printf("migrations applied: %d\n", n)
	return nil
}

func runStatus(ctx context.Context, conn *sql.DB) error {
	all, err := migrate.Status(ctx, conn)
	if err != nil {
		return err
	}
	for _, m := range all {
		state := "pending"
		if m.Applied {
			state = "applied"
		}
		fmt.Printf("%s_%s\t%s\n", m.Version, m.Name, state)
	}
	return nil
}

type simulateFlags struct {
	stations    int
	hours       int
	seed        uint64
	missingRate float64
}

func parseSimulateFlags(name string, args []string) (simulate.Options, error) {
	var f simulateFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.IntVar(&f.stations, "stations", 5, "number of stations")
	fs.IntVar(&f.hours, "hours", 72, "number of trailing hours")
	fs.Uint64Var(&f.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fs.Float64Var(&f.missingRate, "missing", 0.05, "fraction of hours without a prediction")
	if err := fs.Parse(args); err != nil {
		return simulate.Options{}, err
	}
	if f.stations < 1 || f.hours < 1 {
		return simulate.Options{}, fmt.Errorf("-stations and -hours must be positive")
	}
	if f.missingRate < 0 || f.missingRate > 1 {
		return simulate.Options{}, fmt.Errorf("-missing must be between 0 and 1")
	}
	return simulate.Options{
		Stations:              f.stations,
		Hours:                 f.hours,
		Seed:                  f.seed,
		MissingPredictionRate: f.missingRate,
	}, nil
}

func runSeed(ctx context.Context, conn *sql.DB, args []string, logger *slog.Logger) error {
	opts, err := parseSimulateFlags("seed", args)
	if err != nil {
		return err
	}
	if _, err := migrate.Run(ctx, conn, logger); err != nil {
		return err
	}

	ds := simulate.Generate(opts)
	repo := repository.NewRepository(conn)
	for _, r := range ds.Rides {
		if err := repo.UpsertRideCount(ctx, r.StationID, r.Hour, *r.Rides); err != nil {
			return err
		}
	}
	for _, p := range ds.Predictions {
		if err := repo.UpsertPrediction(ctx, p.StationID, p.Hour, *p.PredictedDemand, p.ModelVersion); err != nil {
			return err
		}
	}
	fmt.Printf("seeded %d ride counts and %d predictions for %d stations\n", len(ds.Rides), len(ds.Predictions), opts.Stations)
	return nil
}

func runPublish(ctx context.Context, cfg config.Config, args []string, logger *slog.Logger) error {
	opts, err := parseSimulateFlags("publish", args)
	if err != nil {
		return err
	}

	pub := mqtt.NewPublisher(cfg, logger)
	defer pub.Disconnect()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = pub.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}

	ds := simulate.Generate(opts)
	for _, r := range ds.Rides {
		if err := pub.PublishRideCount(r); err != nil {
			return err
		}
	}
	for _, p := range ds.Predictions {
		if err := pub.PublishPrediction(p); err != nil {
			return err
		}
	}
	fmt.Printf("published %d ride counts and %d predictions for %d stations\n", len(ds.Rides), len(ds.Predictions), opts.Stations)
	return nil
}
