package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/kabu/internal/s0_data/quality"
	"github.com/wonny/kabu/internal/s2_signals"
	"github.com/wonny/kabu/internal/scheduler"
	"github.com/wonny/kabu/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the nightly collection and signal jobs",
	Long: `Runs the daily pipeline on a cron schedule (times from the thresholds file,
schedule.timezone, default Asia/Tokyo):

  quotes      weekdays 20:00  daily quotes for the last few days, split refetch
  statements  weekdays 20:30  disclosures for the last few days
  quality     weekdays 20:45  coverage check
  signals     weekdays 21:00  technical build and fundamental screen
  listed      Mondays  06:00  issue master refresh

Subcommands:
  start   - run until interrupted
  list    - registered jobs and their next run
  run     - run one job now and wait for it

Example:
  go run ./cmd/kabu scheduler start
  go run ./cmd/kabu scheduler run quotes`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintHeader("Scheduler started", "Timezone", a.strategy.Schedule.Location().String())
	printJobs(sched)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// next runs are only computed by a running cron
	sched.Start()
	defer sched.Stop()

	PrintHeader("Registered jobs", "Timezone", a.strategy.Schedule.Location().String())
	printJobs(sched)
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		next := "-"
		if t := sched.NextRun(name); !t.IsZero() {
			next = t.Format("2006-01-02 15:04 MST")
		}
		fmt.Fprintf(out, "  %-11s %-22s next %s\n", name, stats[name].Schedule, next)
	}
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunJob(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %s: %s", jobName, result.Duration, result.Error)
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration))
	return nil
}

// initScheduler registers the daily pipeline
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sc := a.strategy
	col := a.collector()

	builder := s2_signals.NewBuilder(sc.Technical, a.store, a.store, a.store, a.log)
	screener := s2_signals.NewScreener(sc.Fundamental, a.store, a.log)
	gate := quality.NewQualityGate(a.store, quality.DefaultConfig(), a.log)

	sched := scheduler.New(a.log, sc.Schedule.Location())

	for _, job := range []scheduler.Job{
		jobs.NewQuotesJob(col, a.cfg, sc.Schedule, a.log),
		jobs.NewStatementsJob(col, a.cfg, sc.Schedule, a.log),
		jobs.NewQualityJob(gate, sc.Schedule, a.log),
		jobs.NewSignalsJob(builder, screener, a.store, sc.Schedule, a.log),
		jobs.NewListedJob(col, sc.Schedule, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	return sched, nil
}
