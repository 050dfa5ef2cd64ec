package docs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateDocument = "docs.create_document"
	opGetDocument    = "docs.get_document"
	opListDocuments  = "docs.list_documents"
	opDeleteDocument = "docs.delete_document"

	reasonDocumentInsertFailed = "document_insert_failed"
	reasonCascadeFailed        = "cascade_delete_failed"
	reasonDanglingPointer      = "current_version_missing"
)

// CreateDocumentRequest describes a new document and its initial content.
// Empty initial content is allowed.
type CreateDocumentRequest struct {
	OwnerID UserID
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r CreateDocumentRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, maxTitleLength)),
	)
}

// Create stores a document together with its first version.
func (s *Service) Create(ctx context.Context, request CreateDocumentRequest) (view DocumentView, err error) {
	defer func(startedAt time.Time) { s.observe(opCreateDocument, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opCreateDocument); err != nil {
		return DocumentView{}, err
	}
	if request.OwnerID.Anonymous() {
		return DocumentView{}, s.fail(opCreateDocument, reasonMissingCaller, ErrUnauthorized)
	}
	fields := []zap.Field{zap.String(fieldUserID, request.OwnerID.String())}

	request.Title = strings.TrimSpace(request.Title)
	if err := request.validate(); err != nil {
		return DocumentView{}, s.fail(opCreateDocument, validationReason(err), fmt.Errorf("%w: %v", ErrValidation, err), fields...)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		documentID, err := s.newID(opCreateDocument, fields...)
		if err != nil {
			return err
		}
		now := s.now()
		document := Document{
			ID:        documentID,
			OwnerID:   request.OwnerID.String(),
			Title:     request.Title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&document).Error; err != nil {
			return s.fail(opCreateDocument, reasonDocumentInsertFailed, err, fields...)
		}

		initial, err := s.createInitialVersion(tx, opCreateDocument, document, request.Content)
		if err != nil {
			return err
		}
		document.CurrentVersionID = stringPointer(initial.ID)
		document.UpdatedAt = initial.CreatedAt
		view = DocumentView{Document: document, CurrentVersion: &initial}
		return nil
	})
	if txErr != nil {
		return DocumentView{}, s.passOrFail(opCreateDocument, reasonQueryFailed, txErr, fields...)
	}

	s.loggerOrDefault().Info("document created",
		zap.String(fieldDocumentID, view.Document.ID),
		zap.String(fieldUserID, view.Document.OwnerID))
	return view, nil
}

// GetDocument returns the document with its current version attached.
func (s *Service) GetDocument(ctx context.Context, documentID DocumentID) (view DocumentView, err error) {
	defer func(startedAt time.Time) { s.observe(opGetDocument, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opGetDocument); err != nil {
		return DocumentView{}, err
	}

	document, err := s.findDocument(s.db.WithContext(ctx), opGetDocument, documentID, false)
	if err != nil {
		return DocumentView{}, err
	}
	view = DocumentView{Document: document}
	if document.CurrentVersionID == nil {
		return view, nil
	}

	current, err := s.loadVersion(ctx, VersionID(*document.CurrentVersionID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The pointer and the version commit together, so a miss here means
		// the document was deleted between the two reads.
		return DocumentView{}, s.fail(opGetDocument, reasonDanglingPointer,
			fmt.Errorf("%w: document %s: %v", ErrNotFound, documentID, err),
			zap.String(fieldDocumentID, documentID.String()))
	}
	if err != nil {
		return DocumentView{}, s.fail(opGetDocument, reasonQueryFailed, err,
			zap.String(fieldDocumentID, documentID.String()))
	}
	view.CurrentVersion = &current
	return view, nil
}

// ListDocuments returns documents newest first, optionally restricted to one owner.
func (s *Service) ListDocuments(ctx context.Context, ownerID UserID) (documents []Document, err error) {
	defer func(startedAt time.Time) { s.observe(opListDocuments, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opListDocuments); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx)
	if !ownerID.Anonymous() {
		query = query.Where("owner_id = ?", ownerID.String())
	}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&documents).Error; err != nil {
		return nil, s.fail(opListDocuments, reasonQueryFailed, err, zap.String(fieldUserID, ownerID.String()))
	}
	return documents, nil
}

// Delete removes the document with all of its versions and suggestions.
// Non-owners get ErrForbidden and nothing is touched.
func (s *Service) Delete(ctx context.Context, documentID DocumentID, callerID UserID) (err error) {
	defer func(startedAt time.Time) { s.observe(opDeleteDocument, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opDeleteDocument); err != nil {
		return err
	}
	fields := []zap.Field{zap.String(fieldDocumentID, documentID.String())}
	if callerID.Anonymous() {
		return s.fail(opDeleteDocument, reasonMissingCaller, ErrUnauthorized, fields...)
	}
	fields = append(fields, zap.String(fieldUserID, callerID.String()))

	var versionIDs []string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := s.findDocument(tx, opDeleteDocument, documentID, true)
		if err != nil {
			return err
		}
		if !CanDelete(callerID, document) {
			return s.fail(opDeleteDocument, reasonNotOwner,
				fmt.Errorf("%w: only the owner may delete a document", ErrForbidden), fields...)
		}

		if err := tx.Model(&Version{}).Where(queryDocumentID, document.ID).Pluck("id", &versionIDs).Error; err != nil {
			return s.fail(opDeleteDocument, reasonQueryFailed, err, fields...)
		}
		if err := tx.Where(queryDocumentID, document.ID).Delete(&Suggestion{}).Error; err != nil {
			return s.fail(opDeleteDocument, reasonCascadeFailed, err, fields...)
		}
		if err := tx.Where(queryDocumentID, document.ID).Delete(&Version{}).Error; err != nil {
			return s.fail(opDeleteDocument, reasonCascadeFailed, err, fields...)
		}
		if err := tx.Where(queryID, document.ID).Delete(&Document{}).Error; err != nil {
			return s.fail(opDeleteDocument, reasonCascadeFailed, err, fields...)
		}
		return nil
	})
	if txErr != nil {
		return s.passOrFail(opDeleteDocument, reasonQueryFailed, txErr, fields...)
	}

	s.evictVersions(ctx, versionIDs)
	s.publish(Event{
		Type:       EventDocumentDeleted,
		DocumentID: documentID.String(),
		ActorID:    callerID.String(),
		Timestamp:  s.now(),
	})
	s.loggerOrDefault().Info("document deleted", fields...)
	return nil
}
