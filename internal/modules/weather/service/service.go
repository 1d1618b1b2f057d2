package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sensorhub-server/internal/metrics"
	"sensorhub-server/internal/modules/weather/repository"
	"sensorhub-server/internal/modules/weather/types"
)

const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Service is the single write path for readings, shared by the HTTP controller and the MQTT handler.
type Service struct {
	repository repository.WeatherRepository
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repository repository.WeatherRepository, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{repository: repository, metrics: m, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitPayload parses, validates and stores a raw JSON submission.
func (s *Service) SubmitPayload(ctx context.Context, source string, body []byte) (int64, error) {
	in, err := ParseSubmission(body, s.now())
	if err != nil {
		s.metrics.ReadingRejected(source, "validation")
		return 0, err
	}
	return s.Submit(ctx, source, in)
}

// Submit validates in and stores it. Nothing reaches storage unless validation passes.
func (s *Service) Submit(ctx context.Context, source string, in types.NewReading) (int64, error) {
	if err := Validate(in); err != nil {
		s.metrics.ReadingRejected(source, "validation")
		return 0, err
	}
	id, err := s.repository.InsertReading(ctx, in)
	if err != nil {
		s.metrics.ReadingRejected(source, "storage")
		return 0, fmt.Errorf("submit reading: %w", err)
	}
	s.metrics.ReadingIngested(source)
	slog.Debug("reading stored",
		"source", source,
		"id", id,
		"temperature", in.Temperature,
		"humidity", in.Humidity,
		"light", in.LightValue,
	)
	return id, nil
}

func (s *Service) Latest(ctx context.Context, limit int) ([]types.Reading, error) {
	return s.repository.GetLatestReadings(ctx, limit)
}

func (s *Service) ByTimeRange(ctx context.Context, hours int) ([]types.Reading, error) {
	return s.repository.GetReadingsByTimeRange(ctx, hours)
}

func (s *Service) Stats(ctx context.Context, hours int) (types.StatsWindow, error) {
	return s.repository.GetStats(ctx, hours)
}

// IsValidation reports whether err was caused by bad input rather than storage.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
