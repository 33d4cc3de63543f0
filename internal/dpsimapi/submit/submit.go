// Package submit drives a simulation through its submission lifecycle:
// validate, allocate an id, store the record, ingest profile data, publish.
//
// Every stage that succeeds leaves its side effects in place, so a failed
// submission may leave a record behind. Records are never rewritten once they
// have been published; from then on the execution layer owns them.
package submit

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/common/requestid"
	"github.com/sogno-platform/dpsim-api/internal/common/util"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/archive"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/fileservice"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/metrics"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/publisher"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/repository"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/validation"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

type SimulationSubmitter struct {
	simulationRepository repository.SimulationRepository
	profileRepository    repository.ProfileRepository
	publisher            publisher.JobPublisher
	// May be nil, in which case job descriptors carry no model url.
	urlResolver   fileservice.UrlResolver
	archiveLimits archive.Limits
	clock         util.Clock
}

func NewSimulationSubmitter(
	simulationRepository repository.SimulationRepository,
	profileRepository repository.ProfileRepository,
	publisher publisher.JobPublisher,
	urlResolver fileservice.UrlResolver,
	archiveLimits archive.Limits,
	clock util.Clock,
) *SimulationSubmitter {
	return &SimulationSubmitter{
		simulationRepository: simulationRepository,
		profileRepository:    profileRepository,
		publisher:            publisher,
		urlResolver:          urlResolver,
		archiveLimits:        archiveLimits,
		clock:                clock,
	}
}

// Submit accepts a new simulation. On success the returned record has been stored
// and its job descriptor confirmed by the broker. On failure the error is a *StageError.
func (s *SimulationSubmitter) Submit(ctx context.Context, form *validation.SimulationForm) (*api.Simulation, error) {
	start := time.Now()
	simulation, err := s.submit(ctx, form)

	outcome := metrics.OutcomeAccepted
	if err != nil {
		outcome = string(StageFromError(err))
	}
	metrics.Get().RecordSubmission(outcome, time.Since(start))
	return simulation, err
}

func (s *SimulationSubmitter) submit(ctx context.Context, form *validation.SimulationForm) (*api.Simulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, stageError(StageTimeout, 0, err)
	}
	simulation, err := validation.ParseSimulationForm(form)
	if err != nil {
		return nil, stageError(StageValidation, 0, err)
	}
	// An unknown model is a client error, so it must be found before anything is stored.
	modelUrl, err := s.resolveModelUrl(ctx, simulation.ModelId)
	if err != nil {
		return nil, stageError(StageValidation, 0, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stageError(StageTimeout, 0, err)
	}
	id, err := s.simulationRepository.GetNewSimulationId()
	if err != nil {
		return nil, storeStageError(ctx, StageAllocation, 0, err)
	}
	simulation.SimulationId = id
	simulation.Status = api.SimulationStatusStored
	simulation.Created = s.clock.Now()
	logger := log.WithFields(log.Fields{"simulationId": id, "requestId": requestid.FromContextOrMissing(ctx)})

	if err := ctx.Err(); err != nil {
		return nil, stageError(StageTimeout, id, err)
	}
	if err := s.simulationRepository.WriteSimulation(simulation); err != nil {
		return nil, storeStageError(ctx, StagePersist, id, err)
	}
	logger.Infof("Stored %s simulation for model %s", simulation.SimulationType, simulation.ModelId)

	if len(form.Attachments) > 0 {
		if err := ctx.Err(); err != nil {
			return simulation, stageError(StageTimeout, id, err)
		}
		if err := s.ingest(simulation, form.Attachments); err != nil {
			logger.WithError(err).Warn("Failed to ingest profile data")
			s.markIncomplete(simulation, err)
			return simulation, storeStageError(ctx, StageIngest, id, err)
		}
		logger.Infof("Ingested %d profile files", len(simulation.LoadProfileData))
	}

	if err := ctx.Err(); err != nil {
		return simulation, stageError(StageTimeout, id, err)
	}
	if err := s.publish(ctx, simulation, modelUrl); err != nil {
		logger.WithError(err).Error("Failed to publish simulation; the record is kept and can be republished")
		return simulation, stageError(StagePublish, id, err)
	}
	logger.Info("Published simulation")
	return simulation, nil
}

func (s *SimulationSubmitter) resolveModelUrl(ctx context.Context, modelId string) (string, error) {
	if s.urlResolver == nil {
		return "", nil
	}
	return s.urlResolver.ConvertIdToUrl(ctx, modelId)
}

func (s *SimulationSubmitter) ingest(simulation *api.Simulation, attachments []validation.Attachment) error {
	data, err := collectProfileData(attachments, s.archiveLimits)
	if err != nil {
		return err
	}
	key, err := s.profileRepository.WriteProfileData(simulation.SimulationId, data)
	if err != nil {
		return err
	}
	simulation.LoadProfileKey = key
	simulation.LoadProfileData = sortedNames(data)
	metrics.Get().RecordProfileFiles(len(data))
	return s.simulationRepository.WriteSimulation(simulation)
}

// markIncomplete records why ingestion failed and drops profile data that was
// written before the failure, since the record no longer points at it. The
// submission has already failed, so store errors here are only logged.
func (s *SimulationSubmitter) markIncomplete(simulation *api.Simulation, cause error) {
	logger := log.WithField("simulationId", simulation.SimulationId)
	if simulation.LoadProfileKey != "" {
		if err := s.profileRepository.DeleteProfileData(simulation.SimulationId); err != nil {
			logger.WithError(err).Errorf("Failed to delete orphaned profile data %s", simulation.LoadProfileKey)
		}
	}
	simulation.Status = api.SimulationStatusIncomplete
	simulation.Error = cause.Error()
	simulation.LoadProfileKey = ""
	simulation.LoadProfileData = nil
	if err := s.simulationRepository.WriteSimulation(simulation); err != nil {
		logger.WithError(err).Error("Failed to mark simulation as incomplete")
	}
}

func (s *SimulationSubmitter) publish(ctx context.Context, simulation *api.Simulation, modelUrl string) error {
	job := api.NewJobDescriptor(simulation)
	job.ModelUrl = modelUrl
	err := s.publisher.Publish(ctx, job)
	metrics.Get().RecordPublish(err)
	return err
}

func (s *SimulationSubmitter) Get(ctx context.Context, id uint64) (*api.Simulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return s.simulationRepository.ReadSimulation(id)
}

// List returns up to limit records with ids greater than offset.
func (s *SimulationSubmitter) List(ctx context.Context, offset uint64, limit int) ([]*api.Simulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return s.simulationRepository.GetSimulations(offset, limit)
}

// Republish hands an already stored simulation to the execution layer again.
// It is meant for records whose submission failed at the publish stage; records
// with incomplete profile data are refused. The record itself is not modified.
func (s *SimulationSubmitter) Republish(ctx context.Context, id uint64) (*api.Simulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, stageError(StageTimeout, id, err)
	}
	simulation, err := s.simulationRepository.ReadSimulation(id)
	if err != nil {
		return nil, err
	}
	if simulation.Status == api.SimulationStatusIncomplete {
		return nil, errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "simulation_id",
			Value:   strconv.FormatUint(id, 10),
			Message: "simulation has incomplete profile data and can't be published",
		})
	}
	modelUrl, err := s.resolveModelUrl(ctx, simulation.ModelId)
	if err != nil {
		return nil, stageError(StageValidation, id, err)
	}
	if err := s.publish(ctx, simulation, modelUrl); err != nil {
		return nil, stageError(StagePublish, id, err)
	}
	log.WithField("simulationId", id).Info("Republished simulation")
	return simulation, nil
}
