package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const metricsReportInterval = 5 * time.Minute

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that sweeps events and details orphaned by series edits`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Dur("interval", cfg.Sweeper.Interval).
			Dur("grace_period", cfg.Sweeper.GracePeriod).
			Msg("Starting orphan sweeper")

		scheduler, err := newWorkerScheduler(
			clockwork.NewRealClock(),
			cfg.Sweeper.Interval,
			func() error {
				_, err := a.series.SweepOrphans(ctx, cfg.Sweeper.GracePeriod)
				return err
			},
			func() {
				log.Info().Interface("metrics", a.metrics.GetAllMetrics()).Msg("Series metrics")
			},
			func(jobName string, err error) {
				log.Error().Err(err).Str("job", jobName).Msg("Scheduled job failed")
			},
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// newWorkerScheduler schedules the orphan sweep, starting as soon as the
// scheduler starts, and the periodic metrics report. Failed sweeps are handed
// to onError.
func newWorkerScheduler(clock clockwork.Clock, sweepInterval time.Duration, sweep func() error, report func(), onError func(jobName string, err error)) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(sweep),
		gocron.WithName("sweep-orphans"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
				onError(jobName, err)
			}),
		),
	)
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(metricsReportInterval),
		gocron.NewTask(report),
		gocron.WithName("report-metrics"),
	)
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}
