package docs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opCurrentVersion = "docs.current_version"
	opPromote        = "docs.promote"
	opGetVersion     = "docs.get_version"
	opListVersions   = "docs.list_versions"

	reasonNoCurrentVersion    = "no_current_version"
	reasonVersionInsertFailed = "version_insert_failed"
	reasonPointerUpdateFailed = "pointer_update_failed"
	reasonPointerMoved        = "current_version_changed"
	reasonNumberLookupFailed  = "version_number_failed"

	queryDocumentID = "document_id = ?"
	queryID         = "id = ?"
)

// CurrentVersion returns the version the document currently points at.
func (s *Service) CurrentVersion(ctx context.Context, documentID DocumentID) (version Version, err error) {
	defer func(startedAt time.Time) { s.observe(opCurrentVersion, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opCurrentVersion); err != nil {
		return Version{}, err
	}

	document, err := s.findDocument(s.db.WithContext(ctx), opCurrentVersion, documentID, false)
	if err != nil {
		return Version{}, err
	}
	if document.CurrentVersionID == nil {
		return Version{}, s.fail(opCurrentVersion, reasonNoCurrentVersion,
			fmt.Errorf("%w: document %s has no current version", ErrNotFound, documentID),
			zap.String(fieldDocumentID, documentID.String()))
	}
	return s.versionByID(ctx, opCurrentVersion, VersionID(*document.CurrentVersionID))
}

// Promote creates a new version with content and makes it current in one
// transaction. It bypasses review; Accept is the reviewed path.
func (s *Service) Promote(ctx context.Context, documentID DocumentID, authorID UserID, content string) (version Version, err error) {
	defer func(startedAt time.Time) { s.observe(opPromote, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opPromote); err != nil {
		return Version{}, err
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := s.findDocument(tx, opPromote, documentID, true)
		if err != nil {
			return err
		}
		version, err = s.promote(tx, opPromote, document, authorID.String(), content, nil)
		return err
	})
	if txErr != nil {
		return Version{}, s.passOrFail(opPromote, reasonQueryFailed, txErr, zap.String(fieldDocumentID, documentID.String()))
	}
	return version, nil
}

// GetVersion returns any version by id, current or historical.
func (s *Service) GetVersion(ctx context.Context, versionID VersionID) (version Version, err error) {
	defer func(startedAt time.Time) { s.observe(opGetVersion, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opGetVersion); err != nil {
		return Version{}, err
	}
	return s.versionByID(ctx, opGetVersion, versionID)
}

// ListVersions returns the document's history, oldest first.
func (s *Service) ListVersions(ctx context.Context, documentID DocumentID) (versions []Version, err error) {
	defer func(startedAt time.Time) { s.observe(opListVersions, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opListVersions); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if _, err := s.findDocument(db, opListVersions, documentID, false); err != nil {
		return nil, err
	}
	if err := db.Where(queryDocumentID, documentID.String()).
		Order("number ASC").
		Find(&versions).Error; err != nil {
		return nil, s.fail(opListVersions, reasonQueryFailed, err, zap.String(fieldDocumentID, documentID.String()))
	}
	return versions, nil
}

// createInitialVersion stores version 1 for a document that has none yet.
func (s *Service) createInitialVersion(tx *gorm.DB, operation string, document Document, content string) (Version, error) {
	return s.promote(tx, operation, document, document.OwnerID, content, nil)
}

// promote inserts the next version and swings the current pointer from
// document.CurrentVersionID to it. The pointer update is a compare-and-swap:
// if another writer moved the pointer since document was read, nothing is
// written and ErrConflict is returned.
func (s *Service) promote(tx *gorm.DB, operation string, document Document, authorID, content string, suggestionID *string) (Version, error) {
	fields := []zap.Field{zap.String(fieldDocumentID, document.ID)}

	var latestNumber int64
	if err := tx.Model(&Version{}).
		Where(queryDocumentID, document.ID).
		Select("COALESCE(MAX(number), 0)").
		Scan(&latestNumber).Error; err != nil {
		return Version{}, s.fail(operation, reasonNumberLookupFailed, err, fields...)
	}

	versionID, err := s.newID(operation, fields...)
	if err != nil {
		return Version{}, err
	}

	now := s.now()
	version := Version{
		ID:           versionID,
		DocumentID:   document.ID,
		Number:       latestNumber + 1,
		Content:      content,
		AuthorID:     authorID,
		SuggestionID: suggestionID,
		CreatedAt:    now,
	}
	if err := tx.Create(&version).Error; err != nil {
		return Version{}, s.fail(operation, reasonVersionInsertFailed, err, fields...)
	}

	pointer := tx.Model(&Document{}).Where(queryID, document.ID)
	if document.CurrentVersionID == nil {
		pointer = pointer.Where("current_version_id IS NULL")
	} else {
		pointer = pointer.Where("current_version_id = ?", *document.CurrentVersionID)
	}
	update := pointer.Updates(map[string]any{
		"current_version_id": version.ID,
		"updated_at":         now,
	})
	if update.Error != nil {
		return Version{}, s.fail(operation, reasonPointerUpdateFailed, update.Error, fields...)
	}
	if update.RowsAffected != 1 {
		return Version{}, s.fail(operation, reasonPointerMoved,
			fmt.Errorf("%w: current version of document %s changed concurrently", ErrConflict, document.ID), fields...)
	}
	return version, nil
}

// findDocument loads a document, optionally taking a row lock for the rest
// of the transaction.
func (s *Service) findDocument(db *gorm.DB, operation string, documentID DocumentID, lock bool) (Document, error) {
	query := db
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var document Document
	err := query.Where(queryID, documentID.String()).Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, s.fail(operation, reasonDocumentNotFound,
			fmt.Errorf("%w: document %s", ErrNotFound, documentID),
			zap.String(fieldDocumentID, documentID.String()))
	}
	if err != nil {
		return Document{}, s.fail(operation, reasonQueryFailed, err, zap.String(fieldDocumentID, documentID.String()))
	}
	return document, nil
}

func (s *Service) versionByID(ctx context.Context, operation string, versionID VersionID) (Version, error) {
	version, err := s.loadVersion(ctx, versionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Version{}, s.fail(operation, reasonVersionNotFound,
			fmt.Errorf("%w: version %s", ErrNotFound, versionID),
			zap.String(fieldVersionID, versionID.String()))
	}
	if err != nil {
		return Version{}, s.fail(operation, reasonQueryFailed, err, zap.String(fieldVersionID, versionID.String()))
	}
	return version, nil
}

// loadVersion reads through the version cache. Concurrent misses for the same
// id share a single storage query, detached from any one caller's cancellation.
func (s *Service) loadVersion(ctx context.Context, versionID VersionID) (Version, error) {
	logger := s.loggerOrDefault()
	if s.versionCache != nil {
		cached, found, err := s.versionCache.GetVersion(ctx, versionID)
		if err != nil {
			logger.Warn("version cache lookup failed", zap.String(fieldVersionID, versionID.String()), zap.Error(err))
		} else if found {
			s.recordCacheLookup(true)
			return s.confirmCachedVersion(ctx, cached)
		}
		s.recordCacheLookup(false)
	}

	loaded, err, _ := s.versionLoads.Do(versionID.String(), func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		var version Version
		if err := s.db.WithContext(loadCtx).Where(queryID, versionID.String()).Take(&version).Error; err != nil {
			return nil, err
		}
		if s.versionCache != nil {
			if err := s.versionCache.StoreVersion(loadCtx, version); err != nil {
				logger.Warn("version cache store failed", zap.String(fieldVersionID, versionID.String()), zap.Error(err))
			}
		}
		return version, nil
	})
	if err != nil {
		return Version{}, err
	}
	return loaded.(Version), nil
}

// confirmCachedVersion serves a cached version only while its document row
// exists. A load that raced Delete may have stored the version after it was
// evicted; such entries are evicted again and reported as missing.
func (s *Service) confirmCachedVersion(ctx context.Context, version Version) (Version, error) {
	var documents int64
	if err := s.db.WithContext(ctx).Model(&Document{}).Where(queryID, version.DocumentID).Count(&documents).Error; err != nil {
		return Version{}, err
	}
	if documents == 0 {
		s.evictVersions(ctx, []string{version.ID})
		return Version{}, gorm.ErrRecordNotFound
	}
	return version, nil
}

func (s *Service) evictVersions(ctx context.Context, versionIDs []string) {
	if s.versionCache == nil || len(versionIDs) == 0 {
		return
	}
	ids := make([]VersionID, 0, len(versionIDs))
	for _, id := range versionIDs {
		ids = append(ids, VersionID(id))
	}
	if err := s.versionCache.EvictVersions(ctx, ids...); err != nil {
		s.loggerOrDefault().Warn("version cache eviction failed", zap.Int("count", len(ids)), zap.Error(err))
	}
}

func (s *Service) recordCacheLookup(hit bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheLookup(hit)
}
