package docs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opSubmitSuggestion = "docs.submit_suggestion"
	opListSuggestions  = "docs.list_suggestions"
	opGetSuggestion    = "docs.get_suggestion"
	opAcceptSuggestion = "docs.accept_suggestion"
	opRejectSuggestion = "docs.reject_suggestion"

	reasonSuggestionInsertFailed = "suggestion_insert_failed"
	reasonStatusUpdateFailed     = "status_update_failed"
	reasonAlreadyResolved        = "already_resolved"
	reasonNotOwner               = "not_owner"
	reasonStaleBaseVersion       = "stale_base_version"
	reasonInvalidStatus          = "invalid_status"

	maxTitleLength       = 512
	maxDescriptionLength = 8192
)

// SubmitRequest carries the caller-supplied fields of a new suggestion. The
// base version is never taken from the caller.
type SubmitRequest struct {
	DocumentID  DocumentID
	AuthorID    UserID
	Title       string `json:"title"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

func (r SubmitRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, maxTitleLength)),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.Description, validation.RuneLength(0, maxDescriptionLength)),
	)
}

// Submit records a pending suggestion against the document's current version.
func (s *Service) Submit(ctx context.Context, request SubmitRequest) (suggestion Suggestion, err error) {
	defer func(startedAt time.Time) { s.observe(opSubmitSuggestion, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opSubmitSuggestion); err != nil {
		return Suggestion{}, err
	}

	fields := []zap.Field{zap.String(fieldDocumentID, request.DocumentID.String())}
	if request.AuthorID.Anonymous() {
		return Suggestion{}, s.fail(opSubmitSuggestion, reasonMissingCaller, ErrUnauthorized, fields...)
	}
	fields = append(fields, zap.String(fieldUserID, request.AuthorID.String()))

	request.Title = strings.TrimSpace(request.Title)
	if err := request.validate(); err != nil {
		return Suggestion{}, s.fail(opSubmitSuggestion, validationReason(err), fmt.Errorf("%w: %v", ErrValidation, err), fields...)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := s.findDocument(tx, opSubmitSuggestion, request.DocumentID, false)
		if err != nil {
			return err
		}
		if !CanSuggest(request.AuthorID, document) {
			return s.fail(opSubmitSuggestion, reasonNotOwner, ErrForbidden, fields...)
		}
		if document.CurrentVersionID == nil || *document.CurrentVersionID == "" {
			return s.fail(opSubmitSuggestion, reasonNoCurrentVersion,
				fmt.Errorf("%w: document %s has no current version", ErrInvalidState, document.ID), fields...)
		}

		suggestionID, err := s.newID(opSubmitSuggestion, fields...)
		if err != nil {
			return err
		}
		suggestion = Suggestion{
			ID:            suggestionID,
			DocumentID:    document.ID,
			Title:         request.Title,
			Description:   request.Description,
			Content:       request.Content,
			AuthorID:      request.AuthorID.String(),
			BaseVersionID: *document.CurrentVersionID,
			Status:        SuggestionPending,
			CreatedAt:     s.now(),
		}
		if err := tx.Create(&suggestion).Error; err != nil {
			return s.fail(opSubmitSuggestion, reasonSuggestionInsertFailed, err, fields...)
		}
		return nil
	})
	if txErr != nil {
		return Suggestion{}, s.passOrFail(opSubmitSuggestion, reasonQueryFailed, txErr, fields...)
	}

	s.publish(Event{
		Type:         EventSuggestionSubmitted,
		DocumentID:   suggestion.DocumentID,
		SuggestionID: suggestion.ID,
		VersionID:    suggestion.BaseVersionID,
		ActorID:      suggestion.AuthorID,
		Timestamp:    suggestion.CreatedAt,
	})
	return suggestion, nil
}

// ListSuggestions returns the document's suggestions oldest first. An empty
// status returns every suggestion.
func (s *Service) ListSuggestions(ctx context.Context, documentID DocumentID, status SuggestionStatus) (suggestions []Suggestion, err error) {
	defer func(startedAt time.Time) { s.observe(opListSuggestions, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opListSuggestions); err != nil {
		return nil, err
	}
	fields := []zap.Field{zap.String(fieldDocumentID, documentID.String())}
	status, parseErr := ParseSuggestionStatus(string(status))
	if parseErr != nil {
		return nil, s.fail(opListSuggestions, reasonInvalidStatus, fmt.Errorf("%w: %v", ErrValidation, parseErr), fields...)
	}

	db := s.db.WithContext(ctx)
	if _, err := s.findDocument(db, opListSuggestions, documentID, false); err != nil {
		return nil, err
	}

	query := db.Where(queryDocumentID, documentID.String())
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if err := query.Order("created_at ASC").Order("id ASC").Find(&suggestions).Error; err != nil {
		return nil, s.fail(opListSuggestions, reasonQueryFailed, err, fields...)
	}
	return suggestions, nil
}

// GetSuggestion returns a suggestion by id.
func (s *Service) GetSuggestion(ctx context.Context, suggestionID SuggestionID) (suggestion Suggestion, err error) {
	defer func(startedAt time.Time) { s.observe(opGetSuggestion, startedAt, err) }(time.Now())
	if err := s.requireDatabase(opGetSuggestion); err != nil {
		return Suggestion{}, err
	}
	return s.findSuggestion(s.db.WithContext(ctx), opGetSuggestion, suggestionID)
}

// Accept promotes the suggestion's content to a new current version. The
// suggestion's stored content is used as-is, whatever is current now.
func (s *Service) Accept(ctx context.Context, suggestionID SuggestionID, reviewerID UserID) (version Version, err error) {
	defer func(startedAt time.Time) { s.observe(opAcceptSuggestion, startedAt, err) }(time.Now())
	suggestion, promoted, err := s.resolve(ctx, opAcceptSuggestion, suggestionID, reviewerID, SuggestionAccepted)
	if err != nil {
		return Version{}, err
	}
	s.publish(Event{
		Type:         EventSuggestionAccepted,
		DocumentID:   suggestion.DocumentID,
		SuggestionID: suggestion.ID,
		VersionID:    promoted.ID,
		ActorID:      reviewerID.String(),
		Timestamp:    promoted.CreatedAt,
	})
	return promoted, nil
}

// Reject marks the suggestion rejected. No version is created.
func (s *Service) Reject(ctx context.Context, suggestionID SuggestionID, reviewerID UserID) (err error) {
	defer func(startedAt time.Time) { s.observe(opRejectSuggestion, startedAt, err) }(time.Now())
	suggestion, _, err := s.resolve(ctx, opRejectSuggestion, suggestionID, reviewerID, SuggestionRejected)
	if err != nil {
		return err
	}
	resolvedAt := s.now()
	if suggestion.ResolvedAt != nil {
		resolvedAt = *suggestion.ResolvedAt
	}
	s.publish(Event{
		Type:         EventSuggestionRejected,
		DocumentID:   suggestion.DocumentID,
		SuggestionID: suggestion.ID,
		ActorID:      reviewerID.String(),
		Timestamp:    resolvedAt,
	})
	return nil
}

// resolve moves a pending suggestion to target. Only the document row is
// locked, matching Delete's lock order. The pending → resolved transition is
// conditional on the stored status, so of two concurrent resolutions exactly
// one wins.
func (s *Service) resolve(ctx context.Context, operation string, suggestionID SuggestionID, reviewerID UserID, target SuggestionStatus) (Suggestion, Version, error) {
	if err := s.requireDatabase(operation); err != nil {
		return Suggestion{}, Version{}, err
	}
	fields := []zap.Field{zap.String(fieldSuggestionID, suggestionID.String())}
	if reviewerID.Anonymous() {
		return Suggestion{}, Version{}, s.fail(operation, reasonMissingCaller, ErrUnauthorized, fields...)
	}
	fields = append(fields, zap.String(fieldUserID, reviewerID.String()))

	var (
		suggestion Suggestion
		promoted   Version
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		suggestion, err = s.findSuggestion(tx, operation, suggestionID)
		if err != nil {
			return err
		}
		document, err := s.findDocument(tx, operation, DocumentID(suggestion.DocumentID), true)
		if err != nil {
			return err
		}
		if !CanAccept(reviewerID, document) {
			return s.fail(operation, reasonNotOwner,
				fmt.Errorf("%w: only the owner may review suggestions", ErrForbidden), fields...)
		}
		if suggestion.Status.Resolved() {
			return s.fail(operation, reasonAlreadyResolved,
				fmt.Errorf("%w: suggestion is %s", ErrAlreadyResolved, suggestion.Status), fields...)
		}
		if target == SuggestionAccepted && s.rejectStaleSuggestions && !basedOnCurrent(suggestion, document) {
			return s.fail(operation, reasonStaleBaseVersion,
				fmt.Errorf("%w: suggestion is based on %s", ErrConflict, suggestion.BaseVersionID), fields...)
		}

		resolvedAt := s.now()
		transition := tx.Model(&Suggestion{}).
			Where("id = ? AND status = ?", suggestion.ID, string(SuggestionPending)).
			Updates(map[string]any{
				"status":      string(target),
				"resolved_at": resolvedAt,
				"resolved_by": reviewerID.String(),
			})
		if transition.Error != nil {
			return s.fail(operation, reasonStatusUpdateFailed, transition.Error, fields...)
		}
		if transition.RowsAffected != 1 {
			return s.fail(operation, reasonAlreadyResolved, ErrAlreadyResolved, fields...)
		}
		suggestion.Status = target
		suggestion.ResolvedAt = &resolvedAt
		suggestion.ResolvedBy = reviewerID.String()

		if target != SuggestionAccepted {
			return nil
		}
		promoted, err = s.promote(tx, operation, document, suggestion.AuthorID, suggestion.Content, stringPointer(suggestion.ID))
		if err != nil {
			return err
		}
		if err := tx.Model(&Suggestion{}).
			Where(queryID, suggestion.ID).
			Update("result_version_id", promoted.ID).Error; err != nil {
			return s.fail(operation, reasonStatusUpdateFailed, err, fields...)
		}
		suggestion.ResultVersionID = stringPointer(promoted.ID)
		return nil
	})
	if txErr != nil {
		return Suggestion{}, Version{}, s.passOrFail(operation, reasonQueryFailed, txErr, fields...)
	}
	return suggestion, promoted, nil
}

func basedOnCurrent(suggestion Suggestion, document Document) bool {
	return document.CurrentVersionID != nil && *document.CurrentVersionID == suggestion.BaseVersionID
}

func (s *Service) findSuggestion(db *gorm.DB, operation string, suggestionID SuggestionID) (Suggestion, error) {
	var suggestion Suggestion
	err := db.Where(queryID, suggestionID.String()).Take(&suggestion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Suggestion{}, s.fail(operation, reasonSuggestionMissing,
			fmt.Errorf("%w: suggestion %s", ErrNotFound, suggestionID),
			zap.String(fieldSuggestionID, suggestionID.String()))
	}
	if err != nil {
		return Suggestion{}, s.fail(operation, reasonQueryFailed, err, zap.String(fieldSuggestionID, suggestionID.String()))
	}
	return suggestion, nil
}

// validationReason turns the first failing field into a reason such as
// "invalid_title".
func validationReason(err error) string {
	var fieldErrors validation.Errors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "invalid_request"
	}
	names := make([]string, 0, len(fieldErrors))
	for name := range fieldErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid_" + names[0]
}
