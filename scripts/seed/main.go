// Seed adds sample tasks to the database. Run from project root: go run ./scripts/seed [-n 1000]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"shared-tasks/internal/cache"
	"shared-tasks/internal/config"
	"shared-tasks/internal/database"
	"shared-tasks/internal/repository"
	"shared-tasks/pkg/logger"
)

func main() {
	total := flag.Int("n", 1000, "number of tasks to insert")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "Reading .env failed:", err)
	}
	cfg := config.Get()
	logger.SetupTo(os.Stderr, cfg.LogLevel, "text")

	ctx := context.Background()
	db := database.DB(ctx)
	if db == nil {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set or DB connection failed")
		os.Exit(1)
	}
	defer db.Close()

	if err := database.MigrateOrCreateSchema(ctx, db, cfg.DBDriver); err != nil {
		fmt.Fprintln(os.Stderr, "Schema failed:", err)
		os.Exit(1)
	}

	repo := repository.NewTasks(db)
	list := cache.NewTaskList(cache.Client(ctx), time.Duration(cfg.CacheTTL)*time.Second)
	start := time.Now()
	if err := seed(ctx, repo, list, *total, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "\nSeed failed:", err)
		os.Exit(1)
	}

	logger.Infof(ctx, "seeded %d tasks in %v", *total, time.Since(start))
	fmt.Printf("\nDone: %d tasks in %v\n", *total, time.Since(start))
}

// seed inserts total tasks and then moves the shared list cache to a new version,
// so running servers serve the seeded rows on their next list fetch. No events are
// published: watching clients pick the rows up when they next refetch.
func seed(ctx context.Context, repo *repository.Tasks, list *cache.TaskList, total int, out io.Writer) error {
	// invalidate even after a partial run, some rows may already be committed
	defer list.Invalidate(ctx)

	for n := 1; n <= total; n++ {
		if _, err := repo.Create(ctx, fmt.Sprintf("Task %d", n)); err != nil {
			return fmt.Errorf("insert %d: %w", n, err)
		}
		if n%100 == 0 || n == total {
			fmt.Fprintf(out, "\rInserted %d / %d", n, total)
		}
	}
	return nil
}
