package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/gin-gonic/gin"
)

const (
	errorReasonInternal        = "internal"
	errorReasonInvalidRequest  = "invalid_request"
	errorReasonInvalidDocument = "invalid_document_id"
	errorReasonInvalidVersion  = "invalid_version_id"
	errorReasonInvalidSugg     = "invalid_suggestion_id"
	errorCodePrefix            = "http."
)

var statusByKind = map[string]int{
	docs.KindValidation:      http.StatusBadRequest,
	docs.KindUnauthorized:    http.StatusUnauthorized,
	docs.KindForbidden:       http.StatusForbidden,
	docs.KindNotFound:        http.StatusNotFound,
	docs.KindAlreadyResolved: http.StatusConflict,
	docs.KindConflict:        http.StatusConflict,
	docs.KindInvalidState:    http.StatusUnprocessableEntity,
}

func statusForError(err error) int {
	if status, ok := statusByKind[docs.Kind(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError renders a service failure as {"error": reason, "code": code}.
// Internal failures never expose their cause.
func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"error": errorReasonInternal, "code": errorCodePrefix + errorReasonInternal})
		return
	}
	var serviceErr *docs.ServiceError
	if errors.As(err, &serviceErr) {
		c.AbortWithStatusJSON(status, gin.H{"error": serviceErr.Reason(), "code": serviceErr.Code()})
		return
	}
	kind := docs.Kind(err)
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "code": errorCodePrefix + kind})
}

func respondBadRequest(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": reason, "code": errorCodePrefix + reason})
}
