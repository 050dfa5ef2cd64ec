package docs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var noOpLogger = zap.NewNop()

const (
	opServiceNew = "docs.service.new"

	fieldDocumentID   = "document_id"
	fieldVersionID    = "version_id"
	fieldSuggestionID = "suggestion_id"
	fieldUserID       = "user_id"

	reasonMissingDatabase   = "missing_database"
	reasonMissingIDProvider = "missing_id_provider"
	reasonMissingCaller     = "missing_caller"
	reasonQueryFailed       = "query_failed"
	reasonIDGeneration      = "id_generation_failed"
	reasonDocumentNotFound  = "document_not_found"
	reasonVersionNotFound   = "version_not_found"
	reasonSuggestionMissing = "suggestion_not_found"
)

// IDProvider issues unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// VersionCache stores immutable versions by id. Implementations must be safe
// for concurrent use; failures are logged and treated as cache misses.
type VersionCache interface {
	GetVersion(ctx context.Context, versionID VersionID) (Version, bool, error)
	StoreVersion(ctx context.Context, version Version) error
	EvictVersions(ctx context.Context, versionIDs ...VersionID) error
}

// Recorder receives operation telemetry.
type Recorder interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	RecordCacheLookup(hit bool)
}

type ServiceConfig struct {
	Database     *gorm.DB
	Clock        func() time.Time
	IDProvider   IDProvider
	Logger       *zap.Logger
	VersionCache VersionCache
	Events       EventPublisher
	Metrics      Recorder
	// RejectStaleSuggestions makes Accept fail with ErrConflict when the
	// suggestion's base version is no longer the document's current version.
	RejectStaleSuggestions bool
}

// Service implements document lifecycle, version and suggestion operations.
type Service struct {
	db                     *gorm.DB
	clock                  func() time.Time
	idProvider             IDProvider
	logger                 *zap.Logger
	versionCache           VersionCache
	events                 EventPublisher
	metrics                Recorder
	rejectStaleSuggestions bool
	versionLoads           singleflight.Group
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:                     cfg.Database,
		clock:                  clock,
		idProvider:             cfg.IDProvider,
		logger:                 logger,
		versionCache:           cfg.VersionCache,
		events:                 cfg.Events,
		metrics:                cfg.Metrics,
		rejectStaleSuggestions: cfg.RejectStaleSuggestions,
	}, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Service) requireDatabase(operation string) error {
	if s.db == nil {
		return s.fail(operation, reasonMissingDatabase, errMissingDatabase)
	}
	if s.idProvider == nil {
		return s.fail(operation, reasonMissingIDProvider, errMissingIDProvider)
	}
	return nil
}

func (s *Service) newID(operation string, fields ...zap.Field) (string, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", s.fail(operation, reasonIDGeneration, err, fields...)
	}
	return id, nil
}

// fail logs the failure once and returns the matching ServiceError.
func (s *Service) fail(operation, reason string, cause error, fields ...zap.Field) error {
	s.logFailure(operation, reason, cause, fields...)
	return newServiceError(operation, reason, cause)
}

// passOrFail returns err untouched when it is already a ServiceError, so
// errors produced inside transaction closures are not wrapped twice.
func (s *Service) passOrFail(operation, reason string, err error, fields ...zap.Field) error {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}
	return s.fail(operation, reason, err, fields...)
}

func (s *Service) observe(operation string, startedAt time.Time, err error) {
	if s == nil || s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = Kind(err)
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(startedAt))
}

func (s *Service) publish(event Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(event)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logFailure(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	if kind := Kind(err); kind != KindInternal && kind != "" {
		s.loggerOrDefault().Info("docs request rejected", attrs...)
		return
	}
	s.loggerOrDefault().Error("docs service error", attrs...)
}
