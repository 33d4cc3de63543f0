package dpsimapi

import (
	"context"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sogno-platform/dpsim-api/internal/common"
	commonconfig "github.com/sogno-platform/dpsim-api/internal/common/config"
	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/common/health"
	"github.com/sogno-platform/dpsim-api/internal/common/task"
	"github.com/sogno-platform/dpsim-api/internal/common/util"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/archive"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/configuration"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/fileservice"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/metrics"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/publisher"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/repository"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/server"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/submit"
)

// Serve runs the simulation api until ctx is cancelled or a service fails.
func Serve(ctx context.Context, config *configuration.ApiConfig, healthChecks *health.MultiChecker) error {
	log.Info("DPsim api starting")
	defer log.Info("DPsim api shutting down")

	if err := commonconfig.Validate(config); err != nil {
		commonconfig.LogValidationErrors(err)
		return errors.WithMessage(err, "invalid configuration")
	}

	// We call startupCompleteCheck.MarkComplete() when all services have been started.
	startupCompleteCheck := health.NewStartupCompleteChecker()
	healthChecks.Add(startupCompleteCheck)

	// Run all services within an errgroup to propagate errors between services.
	// Defer cancelling the parent context to ensure the errgroup is cancelled on return.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	db := redis.NewClient(config.Redis.AsOptions())
	defer util.CloseResource("redis client", db)
	err := waitFor(ctx, config, "redis", func() error {
		return db.Ping().Err()
	})
	if err != nil {
		return err
	}
	healthChecks.Add(repository.NewRedisHealth(db))

	var jobPublisher publisher.JobPublisher
	err = waitFor(ctx, config, config.Publisher.Backend, func() error {
		p, err := publisher.NewJobPublisher(&config.Publisher)
		if err != nil {
			return err
		}
		jobPublisher = p
		return nil
	})
	if err != nil {
		return err
	}
	defer jobPublisher.Close()
	healthChecks.Add(jobPublisher)

	var urlResolver fileservice.UrlResolver
	if config.FileService.Url != "" {
		urlResolver = fileservice.NewClient(&config.FileService)
	} else {
		log.Info("No file service configured; jobs will not carry model urls")
	}

	simulationRepository := repository.NewRedisSimulationRepository(db)
	submitter := submit.NewSimulationSubmitter(
		simulationRepository,
		repository.NewRedisProfileRepository(db),
		jobPublisher,
		urlResolver,
		archive.Limits{
			MaxEntries:   config.Archive.MaxEntries,
			MaxEntrySize: config.Archive.MaxEntrySize,
			MaxTotalSize: config.Archive.MaxTotalSize,
		},
		&util.UTCClock{})
	simulationServer := server.NewSimulationServer(submitter, config.MaxUploadSize, config.SubmissionTimeout, config.DocumentationUrl)

	taskManager := task.NewBackgroundTaskManager(metrics.MetricsPrefix, prometheus.DefaultRegisterer)
	taskManager.Register("simulation_id_counter", config.MetricsRefreshInterval, func(_ context.Context) error {
		return recordAllocatedIds(simulationRepository)
	})
	g.Go(func() error {
		return taskManager.Run(ctx)
	})

	shutdownHttpServer := common.ServeHttp(config.HttpPort, simulationServer)
	g.Go(func() error {
		<-ctx.Done()
		shutdownHttpServer()
		return nil
	})

	startupCompleteCheck.MarkComplete()
	return g.Wait()
}

// waitFor retries connect until it succeeds, giving dependencies started alongside
// this service time to come up.
func waitFor(ctx context.Context, config *configuration.ApiConfig, name string, connect func() error) error {
	attempts := config.StartupAttempts
	if attempts == 0 {
		attempts = 1
	}
	err := retry.Do(
		connect,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(config.StartupDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("Could not connect to %s (attempt %d of %d)", name, n+1, attempts)
		}),
	)
	if err != nil {
		return errors.WithMessagef(err, "could not connect to %s after %d attempts", name, attempts)
	}
	log.Infof("Connected to %s", name)
	return nil
}

func recordAllocatedIds(simulationRepository repository.SimulationRepository) error {
	n, err := simulationRepository.ReadU64(repository.SimulationIdCounterKey)
	if err != nil {
		var notFound *dpsimerrors.ErrNotFound
		if errors.As(err, &notFound) {
			n = 0
		} else {
			return err
		}
	}
	metrics.Get().RecordAllocatedIds(n)
	return nil
}
