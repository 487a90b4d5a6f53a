// Command migrate applies the database migrations of the reference service
// and can seed it with generated users.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/chybatronik/goRestKit/internal/config"
	"github.com/chybatronik/goRestKit/internal/logging"
	"github.com/chybatronik/goRestKit/internal/store"
	"github.com/chybatronik/goRestKit/pkg/db"
	"github.com/spf13/pflag"
)

const seedBatchSize = 500

type options struct {
	action  string
	envFile []string
	dir     string
	count   int
	timeout time.Duration
}

func usage(flagset *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, `Usage: migrate [options] up|status|verify|seed

Actions:
  up      apply pending migrations
  status  list migrations and whether they ran
  verify  check applied migrations against their files
  seed    insert generated users

Options:
`)
		flagset.PrintDefaults()
	}
}

// parseArgs returns pflag.ErrHelp after printing usage when help was
// requested
func parseArgs(args []string) (options, error) {
	var opts options
	flagset := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagset.StringSliceVarP(&opts.envFile, "env-file", "e", nil, "load variables from `file` (repeatable, default .env)")
	flagset.StringVarP(&opts.dir, "dir", "d", "", "read migrations from `dir` instead of the built-in set")
	flagset.IntVarP(&opts.count, "count", "n", 10000, "number of users created by seed")
	flagset.DurationVarP(&opts.timeout, "timeout", "t", 5*time.Minute, "abort after `duration`")
	flagset.Usage = usage(flagset)

	if err := flagset.Parse(args); err != nil {
		return opts, err
	}
	if flagset.NArg() != 1 {
		return opts, fmt.Errorf("expected exactly one action, got %d", flagset.NArg())
	}

	opts.action = flagset.Arg(0)
	switch opts.action {
	case "up", "status", "verify":
	case "seed":
		if opts.count < 1 {
			return opts, fmt.Errorf("--count must be positive")
		}
	default:
		return opts, fmt.Errorf("unknown action %q", opts.action)
	}
	return opts, nil
}

func main() {
	log.SetFlags(0)
	opts, err := parseArgs(os.Args[1:])
	if err == pflag.ErrHelp {
		return
	} else if err != nil {
		log.Printf("migrate: %v", err)
		os.Exit(1)
	}
	os.Exit(run(opts))
}

func run(opts options) int {
	cfg, err := config.Load(opts.envFile...)
	if err != nil {
		log.Printf("migrate: failed to load configuration: %v", err)
		return 2
	}
	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format, "migrate", cfg.Application.Version)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	state, err := db.NewState(ctx, cfg.Database)
	if err != nil {
		logger.DatabaseError("connection failed", err)
		return 1
	}
	defer state.Close()

	var files fs.FS = store.Migrations()
	if opts.dir != "" {
		files = os.DirFS(opts.dir)
	}
	migrator := store.NewMigrator(state, files, logger.Logger)

	switch opts.action {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			logger.DatabaseError("migration failed", err)
			return 1
		}
		fmt.Printf("%d migration(s) applied\n", n)

	case "status":
		status, err := migrator.Status(ctx)
		if err != nil {
			logger.DatabaseError("status failed", err)
			return 1
		}
		for _, s := range status {
			if s.Applied {
				fmt.Printf("  [x] %s  %s\n", s.Version, s.ExecutedAt.Format(time.RFC3339))
			} else {
				fmt.Printf("  [ ] %s\n", s.Version)
			}
		}

	case "verify":
		if err := migrator.Verify(ctx); err != nil {
			logger.DatabaseError("verification failed", err)
			return 1
		}
		fmt.Println("migrations verified")

	case "seed":
		if err := seed(ctx, store.NewUsers(state), opts.count, rand.N[int]); err != nil {
			logger.DatabaseError("seed failed", err)
			return 1
		}
	}
	return 0
}

var (
	firstNames = []string{"Alex", "Maria", "John", "Sarah", "Mike", "Emma", "David", "Lisa"}
	lastNames  = []string{"Smith", "Johnson", "Brown", "Davis", "Wilson", "Miller", "Taylor", "Anderson"}
)

type userCreator interface {
	Create(ctx context.Context, users ...store.NewUser) ([]store.User, error)
}

// seed inserts count generated users in transactions of seedBatchSize
func seed(ctx context.Context, users userCreator, count int, intn func(int) int) error {
	batch := make([]store.NewUser, 0, seedBatchSize)
	for i := 1; i <= count; i++ {
		batch = append(batch, store.NewUser{
			FirstName: firstNames[intn(len(firstNames))],
			LastName:  lastNames[intn(len(lastNames))],
			Age:       intn(62) + 18,
		})
		if len(batch) < seedBatchSize && i < count {
			continue
		}
		if _, err := users.Create(ctx, batch...); err != nil {
			return fmt.Errorf("failed to insert users %d-%d: %w", i-len(batch)+1, i, err)
		}
		fmt.Printf("generated %d users\n", i)
		batch = batch[:0]
	}
	return nil
}
