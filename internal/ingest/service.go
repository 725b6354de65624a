package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/metrics"
)

// Status messages returned to clients.
const (
	MessageIngested          = "Successfully ingested"
	MessageDuplicatesRemoved = "Insert accepted, duplicates removed"
	MessagePublishFailed     = "Data ingested to datastore. But unable to publish to pub/sub"
)

const defaultPublishConcurrency = 16

var (
	// ErrStore is returned when the datastore rejects or fails the batch.
	ErrStore = errors.New("failed to store observations")
	// ErrPublish is returned when the batch was stored but not published.
	ErrPublish = errors.New("failed to publish observations")
)

// Store is the write side of the datastore client.
type Store interface {
	PutObservations(ctx context.Context, req *datastore.PutObsRequest) (*datastore.PutObsResponse, error)
}

// Publisher sends messages to the pub/sub broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Config configures a Service. Publisher may be nil.
type Config struct {
	Store              Store
	Validator          *Validator
	Decoder            Decoder
	Publisher          Publisher
	TopicPrepend       string
	WIS2               WIS2Config
	IDPrefix           string
	PublishConcurrency int
	Logger             zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is the response body of an ingest request.
type Result struct {
	StatusMessage     string `json:"status_message"`
	StatusCode        int    `json:"status_code"`
	DuplicatesRemoved int    `json:"duplicates_removed,omitempty"`
}

// Service validates batches and dispatches them.
type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.Decoder == nil {
		cfg.Decoder = CommandDecoder{Command: DefaultBUFRDecoderCommand}
	}
	if cfg.PublishConcurrency <= 0 {
		cfg.PublishConcurrency = defaultPublishConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

// IngestJSON ingests one message or a JSON array of messages.
func (s *Service) IngestJSON(ctx context.Context, body []byte) (Result, error) {
	msgs, err := SplitMessages(body)
	if err != nil {
		return Result{}, err
	}
	return s.ingest(ctx, msgs)
}

// IngestBUFR decodes a BUFR file and ingests the messages it holds.
func (s *Service) IngestBUFR(ctx context.Context, data []byte) (Result, error) {
	msgs, err := s.cfg.Decoder.Decode(ctx, data)
	if err != nil {
		return Result{}, err
	}
	if len(msgs) == 0 {
		return Result{}, fmt.Errorf("%w: no observations decoded from BUFR", ErrInvalidMessage)
	}
	return s.ingest(ctx, msgs)
}

func (s *Service) ingest(ctx context.Context, msgs []json.RawMessage) (Result, error) {
	if len(msgs) == 0 {
		return Result{}, fmt.Errorf("%w: no messages", ErrInvalidMessage)
	}

	now := s.cfg.Now()
	envs := make([]*Envelope, 0, len(msgs))
	for i, raw := range msgs {
		env, err := s.cfg.Validator.Validate(raw)
		if err != nil {
			metrics.AddIngested(metrics.OutcomeRejected, len(msgs))
			if len(msgs) > 1 {
				err = fmt.Errorf("message %d: %w", i, err)
			}
			return Result{}, err
		}
		stamp(env, uuid.NewString(), s.cfg.IDPrefix, now)
		envs = append(envs, env)
	}

	envs, dropped := Dedupe(envs)
	metrics.AddIngested(metrics.OutcomeDuplicate, dropped)

	req := &datastore.PutObsRequest{Observations: make([]*datastore.Metadata1, len(envs))}
	for i, env := range envs {
		req.Observations[i] = toMetadata(env)
	}

	if _, err := s.cfg.Store.PutObservations(ctx, req); err != nil {
		metrics.AddIngested(metrics.OutcomeFailed, len(envs))
		s.cfg.Logger.Error().Err(err).Int("observations", len(envs)).Msg("storing observations failed")
		return Result{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	metrics.AddIngested(metrics.OutcomeAccepted, len(envs))

	if err := s.publish(ctx, envs); err != nil {
		s.cfg.Logger.Error().Err(err).Int("observations", len(envs)).Msg("publishing observations failed")
		return Result{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	s.cfg.Logger.Info().
		Int("observations", len(envs)).
		Int("duplicates_removed", dropped).
		Msg("observations ingested")

	if dropped > 0 {
		return Result{
			StatusMessage:     MessageDuplicatesRemoved,
			StatusCode:        http.StatusOK,
			DuplicatesRemoved: dropped,
		}, nil
	}
	return Result{StatusMessage: MessageIngested, StatusCode: http.StatusOK}, nil
}

func (s *Service) publish(ctx context.Context, envs []*Envelope) error {
	if s.cfg.Publisher == nil {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PublishConcurrency)

	for _, env := range envs {
		g.Go(func() error {
			payload, err := json.Marshal(env)
			if err != nil {
				return err
			}
			if err := s.cfg.Publisher.Publish(ctx, s.Topic(env), payload); err != nil {
				return fmt.Errorf("topic %s: %w", s.Topic(env), err)
			}

			if !s.cfg.WIS2.Enabled() {
				return nil
			}
			note, err := NewWIS2Notification(s.cfg.WIS2, env).payload()
			if err != nil {
				return err
			}
			if err := s.cfg.Publisher.Publish(ctx, s.cfg.WIS2.Topic, note); err != nil {
				return fmt.Errorf("topic %s: %w", s.cfg.WIS2.Topic, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Topic is the pub/sub topic of an envelope.
func (s *Service) Topic(env *Envelope) string {
	prepend := strings.TrimRight(s.cfg.TopicPrepend, "/")
	if prepend == "" {
		return env.Properties.NamingAuthority
	}
	return prepend + "/" + env.Properties.NamingAuthority
}

// ErrorResult maps an ingest error onto the response body.
func ErrorResult(err error) Result {
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrDecode):
		return Result{StatusMessage: err.Error(), StatusCode: http.StatusBadRequest}
	case errors.Is(err, ErrPublish):
		return Result{StatusMessage: MessagePublishFailed, StatusCode: http.StatusInternalServerError}
	case errors.Is(err, datastore.ErrDeadline):
		return Result{StatusMessage: err.Error(), StatusCode: http.StatusGatewayTimeout}
	default:
		return Result{StatusMessage: err.Error(), StatusCode: http.StatusInternalServerError}
	}
}
