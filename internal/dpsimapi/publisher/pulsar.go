package publisher

import (
	"context"
	"strconv"
	"strings"

	"github.com/apache/pulsar-client-go/pulsar"
	pulsarlog "github.com/apache/pulsar-client-go/pulsar/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/common/util"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/configuration"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

const simulationTypeProperty = "simulationType"

type PulsarPublisher struct {
	client   pulsar.Client
	producer pulsar.Producer
}

func NewPulsarPublisher(config *configuration.PulsarConfig) (*PulsarPublisher, error) {
	client, err := NewPulsarClient(config)
	if err != nil {
		return nil, err
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Name:             util.NewClientName("dpsim-api"),
		Topic:            config.JobsTopic,
		CompressionType:  config.CompressionType,
		CompressionLevel: config.CompressionLevel,
		SendTimeout:      config.SendTimeout,
	})
	if err != nil {
		client.Close()
		return nil, errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: config.JobsTopic, Err: err})
	}
	return NewPulsarPublisherFromProducer(client, producer), nil
}

// NewPulsarPublisherFromProducer wraps an existing producer. client may be nil,
// in which case only the producer is closed on Close.
func NewPulsarPublisherFromProducer(client pulsar.Client, producer pulsar.Producer) *PulsarPublisher {
	return &PulsarPublisher{client: client, producer: producer}
}

func NewPulsarClient(config *configuration.PulsarConfig) (pulsar.Client, error) {
	var authentication pulsar.Authentication
	if config.AuthenticationEnabled {
		jwtPath, err := getTokenPath(config)
		if err != nil {
			return nil, err
		}
		authentication = pulsar.NewAuthenticationTokenFromFile(jwtPath)
	}

	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:                        config.URL,
		TLSTrustCertsFilePath:      config.TLSTrustCertsFilePath,
		TLSValidateHostname:        config.TLSValidateHostname,
		TLSAllowInsecureConnection: config.TLSAllowInsecureConnection,
		MaxConnectionsPerBroker:    config.MaxConnectionsPerBroker,
		Authentication:             authentication,
		Logger:                     pulsarlog.NewLoggerWithLogrus(logrus.StandardLogger()),
	})
	if err != nil {
		return nil, errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: config.URL, Err: err})
	}
	return client, nil
}

func getTokenPath(config *configuration.PulsarConfig) (string, error) {
	if strings.ToLower(config.AuthenticationType) != "jwt" {
		return "", errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "publisher.pulsar.authenticationType",
			Value:   config.AuthenticationType,
			Message: "only JWT authentication is supported",
		})
	}
	if strings.TrimSpace(config.JwtTokenPath) == "" {
		return "", errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "publisher.pulsar.jwtTokenPath",
			Value:   config.JwtTokenPath,
			Message: "JWT authentication was configured but no token path was supplied",
		})
	}
	return config.JwtTokenPath, nil
}

// Publish sends the job synchronously. Messages are keyed by simulation id so that
// all messages for one simulation land on the same partition.
func (p *PulsarPublisher) Publish(ctx context.Context, job *api.JobDescriptor) error {
	data, err := encode(job)
	if err != nil {
		return err
	}
	_, err = p.producer.Send(ctx, &pulsar.ProducerMessage{
		Payload: data,
		Key:     strconv.FormatUint(job.SimulationId, 10),
		Properties: map[string]string{
			simulationTypeProperty: string(job.SimulationType),
			"messageId":            messageId(job),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		return errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: p.producer.Topic(), Err: err})
	}
	return nil
}

// Check always succeeds; the pulsar client reconnects on its own and exposes no connection state.
func (p *PulsarPublisher) Check() error {
	return nil
}

func (p *PulsarPublisher) Close() {
	p.producer.Close()
	if p.client != nil {
		p.client.Close()
	}
}
