package publisher

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/common/util"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/configuration"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

type JetstreamPublisher struct {
	subject string
	conn    *nats.Conn
	js      nats.JetStreamContext
}

// NewJetstreamPublisher connects to NATS and makes sure the configured stream exists.
func NewJetstreamPublisher(opts *configuration.JetstreamConfig) (*JetstreamPublisher, error) {
	conn, err := nats.Connect(
		strings.Join(opts.Servers, ","),
		nats.Name(util.NewClientName("dpsim-api")),
		nats.Timeout(opts.ConnTimeout),
	)
	if err != nil {
		return nil, errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: opts.Subject, Err: err})
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, errors.WithStack(err)
	}
	if err := ensureStream(js, opts); err != nil {
		conn.Close()
		return nil, err
	}
	return &JetstreamPublisher{
		subject: opts.Subject,
		conn:    conn,
		js:      js,
	}, nil
}

func ensureStream(js nats.JetStreamManager, opts *configuration.JetstreamConfig) error {
	_, err := js.StreamInfo(opts.StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: opts.Subject, Err: err})
	}

	storage := nats.FileStorage
	if opts.InMemory {
		storage = nats.MemoryStorage
	}
	streamConfig := &nats.StreamConfig{
		Name:       opts.StreamName,
		Subjects:   []string{opts.Subject},
		Replicas:   opts.Replicas,
		MaxAge:     time.Duration(opts.MaxAgeDays) * 24 * time.Hour,
		Storage:    storage,
		Duplicates: opts.DuplicateWindow,
	}
	if _, err := js.AddStream(streamConfig); err != nil {
		return errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: opts.Subject, Err: err})
	}
	log.Infof("Created jetstream stream %s on subject %s", opts.StreamName, opts.Subject)
	return nil
}

func (p *JetstreamPublisher) Publish(ctx context.Context, job *api.JobDescriptor) error {
	data, err := encode(job)
	if err != nil {
		return err
	}
	ack, err := p.js.Publish(p.subject, data, nats.Context(ctx), nats.MsgId(messageId(job)))
	if err != nil {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		return errors.WithStack(&dpsimerrors.ErrPublishUnavailable{Channel: p.subject, Err: err})
	}
	if ack.Duplicate {
		log.Warnf("Simulation %d was already published to stream %s", job.SimulationId, ack.Stream)
	}
	return nil
}

func (p *JetstreamPublisher) Check() error {
	if !p.conn.IsConnected() {
		return errors.New("not connected to NATS")
	}
	return nil
}

func (p *JetstreamPublisher) Close() {
	p.conn.Close()
}
