package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/dglink/internal/app"
	"github.com/OFFIS-RIT/dglink/internal/config"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
	"github.com/OFFIS-RIT/dglink/pkg/pipeline"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

const usage = `usage: builder <command> [flags]

commands:
  build     extract projects and write the graph artifacts
  merge     rebuild nodes.tsv and edges.tsv from the per-source artifacts
  score     add predicted_related edges between similar projects
  publish   copy the combined graph into the configured database
`

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command and returns the process exit code. Everything
// opened here is closed before it returns.
func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	app.InitLogger(cfg, "builder")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	defer a.Close()

	start := time.Now()
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "build":
		err = runBuild(ctx, a, rest)
	case "merge":
		err = runMerge(ctx, a, rest)
	case "score":
		err = runScore(ctx, a, rest)
	case "publish":
		err = runPublish(ctx, a, rest)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	if err != nil {
		logger.Error("Command failed", "command", cmd, "err", err)
		return 1
	}
	logger.Info("Command finished", "command", cmd, "duration", time.Since(start))
	return 0
}

func runBuild(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	projects := fs.String("projects", "", "comma separated project ids, all projects when empty")
	workers := fs.Int("workers", a.Config.Workers, "projects extracted in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.ArtifactStorage(ctx)
	if err != nil {
		return err
	}
	repo, err := a.Repository(ctx)
	if err != nil {
		return err
	}
	p, err := a.Pipeline(repo)
	if err != nil {
		return err
	}
	p.Workers = *workers

	ids := splitIDs(*projects)
	if len(ids) == 0 {
		if ids, err = repo.Projects(ctx); err != nil {
			return err
		}
	}

	res, err := p.Build(ctx, ids)
	if err != nil {
		return err
	}
	return pipeline.Snapshot(ctx, st, res.Graph, res.Statuses)
}

func runMerge(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.ArtifactStorage(ctx)
	if err != nil {
		return err
	}
	report, err := pipeline.Merge(ctx, st)
	if err != nil {
		return err
	}
	for _, c := range report.Conflicts {
		logger.Debug("Conflict", "file", c.File, "key", c.Key, "attribute", c.Attribute)
	}
	return nil
}

func runScore(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	cutoff := fs.Float64("cutoff", a.Config.Cutoff, "minimum similarity score")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.ArtifactStorage(ctx)
	if err != nil {
		return err
	}
	opts, err := a.ScoreOptions()
	if err != nil {
		return err
	}
	opts.Cutoff = *cutoff
	_, err = pipeline.Score(ctx, st, opts)
	return err
}

func runPublish(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	name := fs.String("name", a.Config.SnapshotName, "snapshot name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.ArtifactStorage(ctx)
	if err != nil {
		return err
	}
	sink, err := a.Sink(ctx)
	if err != nil {
		return err
	}
	if sink == nil {
		return fmt.Errorf("neither DATABASE_URL nor SQLITE_PATH is set")
	}
	return pipeline.Publish(ctx, st, sink, *name)
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return store.DedupeStrings(ids)
}
