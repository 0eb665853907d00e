package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/config"
	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/metrics"
	"github.com/Luis3c4/IMEI/pkg/outbox"
	"github.com/Luis3c4/IMEI/pkg/outbox/registry"
)

// Fallbacks for config values left at zero.
const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10

	publishTimeout = 15 * time.Second
	backoffCeiling = 10 * time.Second
	backoffJitter  = 250 * time.Millisecond
)

type database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type messageBus interface {
	Ping(context.Context) error
	DomainPublisher() *gcppubsub.Publisher
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) pubResult
}

type pubResult interface {
	Get(context.Context) (string, error)
}

type publisherFunc func(topic string) topicPublisher

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               database
	PubSub           messageBus
	Repository       outboxStore
	Registry         eventResolver
	PublisherFactory publisherFunc
	DLQRepository    dlqStore
	Metrics          *metrics.PipelineMetrics
}

// Service relays transactional-outbox rows to Pub/Sub. Rows written by the
// reconciliation pipeline and the item status endpoint are published in
// claim-locked batches, transient failures retry with capped backoff, and
// rows that can never succeed are parked in the DLQ.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       database
	bus      messageBus
	store    outboxStore
	dlq      dlqStore
	resolver eventResolver
	pipeline *metrics.PipelineMetrics

	newPublisher publisherFunc
	batchSize    int
	maxAttempts  int
	pollEvery    time.Duration
	rng          *rand.Rand
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	newPublisher := params.PublisherFactory
	if newPublisher == nil {
		newPublisher = func(topic string) topicPublisher {
			p := params.PubSub.Publisher(topic)
			if p == nil {
				return nil
			}
			return &livePublisher{pub: p}
		}
	}

	cfg := params.Config.Outbox
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := cfg.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		bus:          params.PubSub,
		store:        params.Repository,
		dlq:          params.DLQRepository,
		resolver:     params.Registry,
		pipeline:     params.Metrics,
		newPublisher: newPublisher,
		batchSize:    batch,
		maxAttempts:  attempts,
		pollEvery:    time.Duration(pollMs) * time.Millisecond,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.bus.Ping},
	}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	return nil
}

// Run polls the outbox until the context is canceled. Batch errors grow the
// sleep exponentially up to backoffCeiling; an empty poll waits out one
// jittered interval. A batch that moved rows loops immediately.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	every := s.pollEvery
	if every <= 0 {
		every = defaultPollMs * time.Millisecond
	}
	delay := backoff{base: every, ceiling: backoffCeiling}

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		drained, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			if err := s.wait(ctx, s.jitter(delay.next())); err != nil {
				return err
			}
		case drained:
			delay.reset()
		default:
			delay.reset()
			if err := s.wait(ctx, s.jitter(every)); err != nil {
				return err
			}
		}
	}
}

// processBatch claims one batch of unpublished rows. The SKIP LOCKED fetch
// and every mark run in the same transaction, so concurrent publisher
// instances never relay the same event twice.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var sawRows bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.store.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		sawRows = true

		for _, row := range rows {
			if err := s.relay(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return sawRows, err
}

// relay pushes one row through resolve → publish → bookkeeping. Publish
// failures mark the row and move on; only bookkeeping failures abort the
// batch so its transaction rolls back intact.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := s.resolver.Resolve(row)
	if err != nil {
		return s.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err, "")
	}
	topic := resolved.Descriptor.Topic

	pubErr := s.publish(ctx, row, resolved)
	if pubErr == nil {
		if err := s.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.pipeline.IncSuccess("outbox_publish")
		s.logg.Info(s.relayContext(ctx, row, topic, &resolved.Envelope, nil), "outbox event published")
		return nil
	}

	var fatal registry.NonRetryableError
	if errors.As(pubErr, &fatal) {
		return s.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr, topic)
	}
	if row.AttemptCount+1 >= s.maxAttempts {
		terminal := fmt.Errorf("max publish attempts reached: %w", pubErr)
		return s.park(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, terminal, topic)
	}

	s.pipeline.IncFailure("outbox_publish")
	s.logg.Warn(s.relayContext(ctx, row, topic, &resolved.Envelope, pubErr), "outbox publish failed")
	if err := s.store.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return nil
}

// park copies the row to the DLQ and marks it terminal so the fetch query
// stops returning it. Both writes share the batch transaction.
func (s *Service) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	logCtx := s.relayContext(ctx, row, topic, nil, cause)
	logCtx = s.logg.WithField(logCtx, "error_reason", reason)
	s.logg.Warn(logCtx, "outbox event will not be retried")
	s.pipeline.IncFailure("outbox_terminal")

	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  errorText(cause),
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := s.store.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.newPublisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(pubCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(pubCtx)
	return err
}

// relayContext tags the log context with everything needed to trace one row
// through the relay.
func (s *Service) relayContext(ctx context.Context, row models.OutboxEvent, topic string, env *outbox.PayloadEnvelope, cause error) context.Context {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
		"batch_size":     s.batchSize,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if env != nil && env.EventID != "" {
		fields["event_id"] = env.EventID
		fields["occurred_at"] = env.OccurredAt.Format(time.RFC3339Nano)
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if s.rng == nil {
		return d
	}
	return d + time.Duration(s.rng.Int63n(int64(backoffJitter)))
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// backoff doubles from its base on every next() until the ceiling; reset()
// starts the progression over.
type backoff struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
}

func (b *backoff) next() time.Duration {
	if b.current <= 0 {
		b.current = b.base
	}
	b.current *= 2
	if b.current > b.ceiling {
		b.current = b.ceiling
	}
	return b.current
}

func (b *backoff) reset() {
	b.current = 0
}

type livePublisher struct {
	pub *gcppubsub.Publisher
}

func (p *livePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) pubResult {
	if p == nil || p.pub == nil {
		return nil
	}
	return &liveResult{res: p.pub.Publish(ctx, msg)}
}

type liveResult struct {
	res *gcppubsub.PublishResult
}

func (r *liveResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}
