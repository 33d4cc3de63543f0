// Package publisher hands accepted simulations to the execution layer.
//
// A publish only returns once the broker has confirmed the message is durable,
// so a nil error means the job will eventually be seen by a worker.
package publisher

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/configuration"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	BackendJetstream = "jetstream"
	BackendPulsar    = "pulsar"
)

type JobPublisher interface {
	// Publish blocks until the broker has accepted the job or ctx expires.
	Publish(ctx context.Context, job *api.JobDescriptor) error
	// Check reports whether the broker connection is currently usable.
	Check() error
	Close()
}

// NewJobPublisher connects to the backend named in config.
func NewJobPublisher(config *configuration.PublisherConfig) (JobPublisher, error) {
	switch config.Backend {
	case BackendJetstream:
		return NewJetstreamPublisher(&config.Jetstream)
	case BackendPulsar:
		return NewPulsarPublisher(&config.Pulsar)
	default:
		return nil, errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "publisher.backend",
			Value:   config.Backend,
			Message: fmt.Sprintf("expected %q or %q", BackendJetstream, BackendPulsar),
		})
	}
}

// messageId identifies a job to the broker, which uses it to drop duplicate deliveries.
func messageId(job *api.JobDescriptor) string {
	return fmt.Sprintf("simulation-%d", job.SimulationId)
}

func encode(job *api.JobDescriptor) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, errors.WithStack(&dpsimerrors.ErrSerialization{Type: "job descriptor", Err: err})
	}
	return data, nil
}
