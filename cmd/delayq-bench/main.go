// Command delayq-bench drives the reservation core against a live database:
// it enqueues a batch of jobs, runs a handful of concurrent "workers" that
// each call Reserve in a loop until the table drains, and reports how many
// jobs were claimed in total and how long that took. It is a hand exerciser for manual verification
// of claim correctness and throughput, not a production worker process.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/spf13/cobra"

	"github.com/delayq/delayq"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		dsn         string
		adapter     string
		numJobs     int
		numWorkers  int
		maxRunTime  time.Duration
		tablePrefix string
	)

	cmd := &cobra.Command{
		Use:   "delayq-bench",
		Short: "Exercise the delayq reservation core against a live database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), benchConfig{
				dsn:         dsn,
				adapter:     delayq.AdapterName(adapter),
				numJobs:     numJobs,
				numWorkers:  numWorkers,
				maxRunTime:  maxRunTime,
				tablePrefix: tablePrefix,
			})
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "database connection string")
	cmd.Flags().StringVar(&adapter, "adapter", "postgres", "postgres, mysql, mssql, teradata or generic")
	cmd.Flags().IntVar(&numJobs, "jobs", 1000, "number of jobs to enqueue")
	cmd.Flags().IntVar(&numWorkers, "workers", 8, "number of concurrent reserving workers")
	cmd.Flags().DurationVar(&maxRunTime, "max-run-time", 4*time.Hour, "lock lease duration passed to Reserve")
	cmd.Flags().StringVar(&tablePrefix, "table-prefix", "", "delayed_jobs table prefix")

	return cmd
}

type benchConfig struct {
	dsn         string
	adapter     delayq.AdapterName
	numJobs     int
	numWorkers  int
	maxRunTime  time.Duration
	tablePrefix string
}

func run(ctx context.Context, cfg benchConfig) error {
	if cfg.dsn == "" {
		return fmt.Errorf("delayq-bench: --dsn is required")
	}

	backend, cleanup, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	for i := 0; i < cfg.numJobs; i++ {
		if _, err := backend.Enqueue(ctx, map[string]any{"i": i}, delayq.Options{
			Priority: i % 5,
		}); err != nil {
			return fmt.Errorf("enqueue job %d: %w", i, err)
		}
	}

	var claimed int64
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < cfg.numWorkers; w++ {
		wg.Add(1)
		workerName := fmt.Sprintf("bench-%d", w)
		go func() {
			defer wg.Done()
			defer func() {
				if err := backend.ClearLocks(ctx, workerName); err != nil {
					fmt.Fprintf(os.Stderr, "clear locks: %v\n", err)
				}
			}()
			for {
				job, err := backend.Reserve(ctx, delayq.WorkerConfig{Name: workerName}, cfg.maxRunTime)
				if err != nil {
					fmt.Fprintf(os.Stderr, "reserve: %v\n", err)
					return
				}
				if job == nil {
					return
				}
				atomic.AddInt64(&claimed, 1)
				if err := backend.Destroy(ctx, job); err != nil {
					fmt.Fprintf(os.Stderr, "destroy: %v\n", err)
				}
			}
		}()
	}
	wg.Wait()

	fmt.Printf("claimed %d/%d jobs across %d workers in %s\n", claimed, cfg.numJobs, cfg.numWorkers, time.Since(start))
	return nil
}

func openBackend(ctx context.Context, cfg benchConfig) (delayq.JobBackend, func(), error) {
	opts := []delayq.StoreOption{delayq.WithTablePrefix(cfg.tablePrefix)}

	if cfg.adapter == delayq.AdapterPostgres {
		pool, err := pgxpool.New(ctx, cfg.dsn)
		if err != nil {
			return nil, nil, err
		}
		return delayq.NewPostgresStore(pool, opts...), pool.Close, nil
	}

	driverName := "mysql"
	if cfg.adapter == delayq.AdapterMSSQL || cfg.adapter == delayq.AdapterTeradata {
		driverName = "sqlserver"
	}
	db, err := sql.Open(driverName, cfg.dsn)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }
	return delayq.NewSQLStore(db, cfg.adapter, opts...), cleanup, nil
}
