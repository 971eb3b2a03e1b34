package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 1000
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 30 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type pinger interface {
	Ping(context.Context) error
}

type mailRepository interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.MailMessage, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// mailDocument is the message body the delivery extension consumes.
type mailDocument struct {
	To        []string  `json:"to"`
	From      string    `json:"from"`
	ReplyTo   string    `json:"replyTo,omitempty"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"createdAt"`
}

type ServiceParams struct {
	Config     config.MailRelayConfig
	Logger     *logger.Logger
	DB         pinger
	PubSub     pinger
	Repository mailRepository
	Publisher  publisher
	Now        func() time.Time
}

// Service relays queued mail rows to Pub/Sub until its context ends.
type Service struct {
	logg         *logger.Logger
	db           pinger
	pubsub       pinger
	repo         mailRepository
	publisher    publisher
	now          func() time.Time
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("mail repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("mail publisher is required")
	}

	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		publisher:    params.Publisher,
		now:          now,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	return pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping)
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "mail relay context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "mail relay batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = s.pollInterval

		if processed > 0 {
			continue
		}
		if err := sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// processBatch publishes one batch and reports how many rows it touched.
// Publish failures are recorded per row; only repository errors abort.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	messages, err := s.repo.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished mail: %w", err)
	}

	for _, msg := range messages {
		fields := messageFields(msg)
		if err := s.publish(ctx, msg); err != nil {
			nextAttempt := msg.AttemptCount + 1
			fields["attempt_count"] = nextAttempt
			logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
			if nextAttempt >= s.maxAttempts {
				s.logg.Warn(logCtx, "mail message will not be retried")
			} else {
				s.logg.Warn(logCtx, "mail publish failed")
			}
			if markErr := s.repo.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				return 0, fmt.Errorf("mark failure %s: %w", msg.ID, markErr)
			}
			continue
		}

		if err := s.repo.MarkPublished(ctx, msg.ID, s.now()); err != nil {
			return 0, fmt.Errorf("mark published %s: %w", msg.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "mail message published")
	}
	return len(messages), nil
}

func (s *Service) publish(ctx context.Context, msg models.MailMessage) error {
	data, err := json.Marshal(mailDocument{
		To:        msg.To,
		From:      msg.From,
		ReplyTo:   msg.ReplyTo,
		Subject:   msg.Subject,
		HTML:      msg.HTML,
		CreatedAt: msg.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	attributes := map[string]string{
		"mail_id":    msg.ID.String(),
		"dedupe_key": msg.DedupeKey,
		"template":   string(msg.Template),
	}
	if msg.OrderID != nil {
		attributes["order_id"] = msg.OrderID.String()
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := s.publisher.Publish(publishCtx, &gcppubsub.Message{Data: data, Attributes: attributes})
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	_, err = result.Get(publishCtx)
	return err
}

func messageFields(msg models.MailMessage) map[string]any {
	fields := map[string]any{
		"mail_id":       msg.ID.String(),
		"dedupe_key":    msg.DedupeKey,
		"template":      msg.Template,
		"attempt_count": msg.AttemptCount,
	}
	if msg.OrderID != nil {
		fields["order_id"] = msg.OrderID.String()
	}
	if msg.LastError != nil {
		fields["last_error"] = *msg.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
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

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
