// Package lookup resolves UK postcodes to address lists, serving from a
// cache when it holds a fresh entry and from the address service otherwise.
package lookup

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "postcode-workers/internal/common/errors"
	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/common/metrics"
	"postcode-workers/internal/common/pca"
	"postcode-workers/internal/common/postcode"
	"postcode-workers/internal/models"
)

// Lookup outcomes used as metric labels.
const (
	OutcomeOK              = "ok"
	OutcomeInvalidPostcode = "invalid_postcode"
	OutcomeTransportError  = "transport_error"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeConfigError     = "configuration_error"
)

const tracerName = "postcode-workers/lookup"

// RemoteClient fetches the raw address payload for a normalized postcode.
type RemoteClient interface {
	Fetch(ctx context.Context, postcode string, creds pca.Credentials) ([]byte, error)
}

// Config holds per-service settings fixed at construction.
type Config struct {
	Freshness FreshnessPolicy
}

type Service struct {
	config  Config
	client  RemoteClient
	cache   Cache
	backend string
	logger  logger.Logger
}

// NewService wires the orchestrator. cache may be nil, in which case every
// lookup goes to the remote client and nothing is stored.
func NewService(cfg Config, client RemoteClient, cache Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	backend := "none"
	if cache != nil {
		backend = cacheName(cache)
	}
	return &Service{
		config:  cfg,
		client:  client,
		cache:   cache,
		backend: backend,
		logger:  log,
	}
}

// Get resolves a postcode. Invalid input, transport failures and upstream
// data problems are reported inside the result; the returned error is
// non-nil only when the service is misconfigured.
func (s *Service) Get(ctx context.Context, raw string, creds pca.Credentials, overrideCache bool) (*models.LookupResult, error) {
	lookupID := uuid.NewString()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "lookup.Get", trace.WithAttributes(
		attribute.String("lookup.id", lookupID),
		attribute.Bool("lookup.override_cache", overrideCache),
		attribute.String("cache.backend", s.backend),
	))
	defer span.End()

	log := s.logger.WithFields(map[string]interface{}{
		"lookupId": lookupID,
		"postcode": raw,
	})

	pc, ok := postcode.Parse(raw)
	if !ok {
		log.Debug("Rejected invalid postcode", map[string]interface{}{
			"errorCode": string(apperrors.ErrCodeInvalidPostcode),
		})
		recordLookup(span, models.SourceCache, OutcomeInvalidPostcode)
		return &models.LookupResult{
			Postcode: raw,
			Error:    models.ErrorInvalidPostcode,
			Source:   models.SourceCache,
		}, nil
	}
	normalized := pc.String()
	span.SetAttributes(attribute.String("postcode.outward", pc.Outward()))

	if s.cache != nil {
		if overrideCache {
			metrics.RecordCacheMiss(s.backend, "bypass")
		} else if records, hit := s.fromCache(ctx, log, normalized); hit {
			recordLookup(span, models.SourceCache, OutcomeOK)
			return &models.LookupResult{
				Postcode: raw,
				Source:   models.SourceCache,
				Data:     records,
			}, nil
		}
	}

	start := time.Now()
	body, err := s.client.Fetch(ctx, normalized, creds)
	if err != nil {
		if stderrors.Is(err, pca.ErrMissingCredentials) {
			log.Error("Address lookup is not configured", map[string]interface{}{"error": err.Error()})
			recordLookup(span, models.SourceAPI, OutcomeConfigError)
			return nil, apperrors.NewConfigurationError(err)
		}

		metrics.ObserveUpstream(OutcomeTransportError, time.Since(start))
		recordLookup(span, models.SourceAPI, OutcomeTransportError)
		detail := err.Error()
		var te *pca.TransportError
		if stderrors.As(err, &te) {
			detail = te.Message
		}
		logFailure(log, span, "Address service request failed", apperrors.NewTransportError(err))
		return &models.LookupResult{
			Postcode:    raw,
			Error:       models.ErrorLookupFailed,
			ErrorDetail: detail,
			Source:      models.SourceAPI,
		}, nil
	}

	outcome := Normalize(body)
	if outcome.Err != nil {
		metrics.ObserveUpstream(OutcomeUpstreamError, time.Since(start))
		recordLookup(span, models.SourceAPI, OutcomeUpstreamError)
		logFailure(log, span, "Address service returned no usable addresses", apperrors.NewUpstreamDataError(outcome.Err.Detail))
		return &models.LookupResult{
			Postcode:    raw,
			Error:       models.ErrorUpstreamProblem,
			ErrorDetail: outcome.Err.Detail,
			Source:      models.SourceAPI,
		}, nil
	}
	metrics.ObserveUpstream(OutcomeOK, time.Since(start))

	if s.cache != nil {
		s.store(ctx, log, normalized, outcome.Records)
	}

	recordLookup(span, models.SourceAPI, OutcomeOK)
	log.Info("Resolved postcode from address service", map[string]interface{}{"addresses": len(outcome.Records)})

	return &models.LookupResult{
		Postcode: raw,
		Source:   models.SourceAPI,
		Data:     outcome.Records,
	}, nil
}

// JSON is Get followed by models.ToJSON.
func (s *Service) JSON(ctx context.Context, raw string, creds pca.Credentials, overrideCache bool) (string, error) {
	result, err := s.Get(ctx, raw, creds, overrideCache)
	if err != nil {
		return "", err
	}
	return models.ToJSON(result)
}

// fromCache returns cached records when a fresh, decodable entry exists.
// Read and decode failures are logged and count as misses.
func (s *Service) fromCache(ctx context.Context, log logger.Logger, normalized string) ([]models.AddressRecord, bool) {
	entry, err := s.cache.Find(ctx, normalized)
	switch {
	case stderrors.Is(err, ErrCacheMiss):
		metrics.RecordCacheMiss(s.backend, "absent")
		return nil, false
	case err != nil:
		metrics.RecordCacheMiss(s.backend, "error")
		log.Warn("Cache read failed", map[string]interface{}{
			"error":     err.Error(),
			"errorCode": string(apperrors.ErrCodeCacheReadFailed),
			"backend":   s.backend,
		})
		return nil, false
	case entry == nil:
		metrics.RecordCacheMiss(s.backend, "absent")
		return nil, false
	}

	if !s.config.Freshness.IsFresh(entry.CreatedAt) {
		metrics.RecordCacheMiss(s.backend, "stale")
		log.Debug("Cached entry is stale", map[string]interface{}{"created": entry.CreatedAt})
		return nil, false
	}

	var records []models.AddressRecord
	if err := json.Unmarshal([]byte(entry.Content), &records); err != nil {
		metrics.RecordCacheMiss(s.backend, "error")
		log.Warn("Cached entry is not decodable", map[string]interface{}{
			"error":     err.Error(),
			"errorCode": string(apperrors.ErrCodeCacheReadFailed),
			"backend":   s.backend,
		})
		return nil, false
	}
	if records == nil {
		records = []models.AddressRecord{}
	}

	metrics.RecordCacheHit(s.backend)
	return records, true
}

// store writes records back to the cache. Failures never affect the result.
func (s *Service) store(ctx context.Context, log logger.Logger, normalized string, records []models.AddressRecord) {
	content, err := json.Marshal(records)
	if err != nil {
		log.Warn("Could not serialize addresses for cache", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := s.cache.Upsert(ctx, normalized, string(content)); err != nil {
		metrics.RecordCacheWriteFailure(s.backend)
		log.Warn("Cache write failed", map[string]interface{}{
			"error":     err.Error(),
			"errorCode": string(apperrors.ErrCodeCacheWriteFailed),
			"backend":   s.backend,
		})
	}
}

// logFailure reports a per-call failure that is returned in the result
// rather than as an error.
func logFailure(log logger.Logger, span trace.Span, msg string, stdErr *apperrors.StandardError) {
	span.RecordError(stdErr)
	log.Warn(msg, map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"errorCategory": apperrors.GetErrorCategory(stdErr.Code),
		"retryable":     apperrors.IsRetryableErrorCode(stdErr.Code),
		"detail":        stdErr.Details,
	})
}

func recordLookup(span trace.Span, source models.Source, outcome string) {
	metrics.RecordLookup(string(source), outcome)
	span.SetAttributes(
		attribute.String("lookup.source", string(source)),
		attribute.String("lookup.outcome", outcome),
	)
	if outcome == OutcomeConfigError {
		span.SetStatus(codes.Error, outcome)
	}
}
