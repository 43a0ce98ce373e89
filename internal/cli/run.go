package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/imkarma/ideaflow/internal/agent"
	"github.com/imkarma/ideaflow/internal/build"
	"github.com/imkarma/ideaflow/internal/notify"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/skills"
	"github.com/imkarma/ideaflow/internal/store"
	"github.com/imkarma/ideaflow/internal/worker"
)

var runSolo string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline workers",
	Long: `Starts every stage worker (pm, dev, builder, qa, consulting, reviewer) on
its configured interval, or only one with --solo. Items left in_progress by an
interrupted run are re-queued first, for the stages this process runs. Ctrl-C waits for running cycles to finish
and prints a summary.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSolo, "solo", "", "run a single worker: "+strings.Join(worker.Selectors, ", "))
}

func runRun(cmd *cobra.Command, args []string) error {
	selectors := worker.Selectors
	if runSolo != "" {
		if !isSelector(runSolo) {
			return fmt.Errorf("unknown worker %q (valid: %s)", runSolo, strings.Join(worker.Selectors, ", "))
		}
		selectors = []string{runSolo}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := slog.Default()
	if queues := claimedQueues(selectors); len(queues) > 0 {
		n, err := pipeline.Recover(st, queues...)
		if err != nil {
			return fmt.Errorf("recover interrupted items: %w", err)
		}
		if n > 0 {
			logger.Info("re-queued interrupted items", "count", n)
		}
	}

	chain := agent.BuildChain(cfg.Backends, logger)
	if len(chain.Names()) == 0 {
		logger.Warn("no usable model backends configured; generation stages will fail items")
	}
	loader := skills.NewLoader(cfg.SkillsDir)
	validator := build.NewPythonValidator(cfg.ProjectsDir, cfg.Build, logger)
	notifier := notify.New(cfg.Notify, logger)

	// Each worker gets its own store handle.
	var workers []worker.Worker
	for _, sel := range selectors {
		s, err := store.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()

		w, err := worker.New(sel, worker.Deps{
			Store:     s,
			Chain:     chain,
			Skills:    loader,
			Validator: validator,
			Notifier:  notifier,
			Logger:    logger,
			Interval:  cfg.Intervals.For(sel),
		})
		if err != nil {
			return err
		}
		workers = append(workers, w)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := worker.NewPool(worker.PoolConfig{
		Workers:         workers,
		Stats:           st,
		MonitorInterval: time.Duration(cfg.MonitorInterval) * time.Second,
		Logger:          logger,
	})

	fmt.Printf("%sideaflow%s running %s (backends: %s)\n", colorBold, colorReset,
		strings.Join(selectors, ", "), strings.Join(chain.Names(), " > "))
	pool.Run(ctx)

	printSummary(pool.Summary())
	return nil
}

func isSelector(name string) bool {
	for _, s := range worker.Selectors {
		if s == name {
			return true
		}
	}
	return false
}

// claimedQueues returns the queues whose in_progress items this process
// would own: only the generating stages claim items.
func claimedQueues(selectors []string) []store.Status {
	var queues []store.Status
	for _, sel := range selectors {
		switch sel {
		case "dev":
			queues = append(queues, store.StatusQueuedSoftware)
		case "consulting":
			queues = append(queues, store.StatusQueuedConsulting)
		}
	}
	return queues
}

func printSummary(counts []worker.Counts) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Worker", "Cycles", "Processed", "Errors"})
	var cycles, processed, errs int
	for _, c := range counts {
		tw.AppendRow(table.Row{c.Worker, c.Cycles, c.Processed, c.Errors})
		cycles += c.Cycles
		processed += c.Processed
		errs += c.Errors
	}
	tw.AppendFooter(table.Row{"total", cycles, processed, errs})
	tw.Render()
}
