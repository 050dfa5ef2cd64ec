package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/gin-gonic/gin"
)

func suggestionIDParam(c *gin.Context) (docs.SuggestionID, bool) {
	suggestionID, err := docs.NewSuggestionID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, errorReasonInvalidSugg)
		return "", false
	}
	return suggestionID, true
}

func (h *httpHandler) handleListSuggestions(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	suggestions, err := h.docsService.ListSuggestions(c.Request.Context(), documentID, docs.SuggestionStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	response := make([]suggestionPayload, 0, len(suggestions))
	for _, suggestion := range suggestions {
		response = append(response, newSuggestionPayload(suggestion))
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": response})
}

// handleSubmitSuggestion answers 201 with a Location pointing back at the
// document's suggestion list entry, which clients follow as a redirect.
func (h *httpHandler) handleSubmitSuggestion(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	var request submitSuggestionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBadRequest(c, errorReasonInvalidRequest)
		return
	}
	suggestion, err := h.docsService.Submit(c.Request.Context(), docs.SubmitRequest{
		DocumentID:  documentID,
		AuthorID:    callerID(c),
		Title:       request.Title,
		Content:     request.Content,
		Description: request.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Location", "/documents/"+suggestion.DocumentID+"/suggestions/"+suggestion.ID)
	c.JSON(http.StatusCreated, newSuggestionPayload(suggestion))
}

func (h *httpHandler) handleGetSuggestion(c *gin.Context) {
	suggestionID, ok := suggestionIDParam(c)
	if !ok {
		return
	}
	suggestion, err := h.docsService.GetSuggestion(c.Request.Context(), suggestionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSuggestionPayload(suggestion))
}

// handleGetDocumentSuggestion resolves the Location returned on submit. A
// suggestion of another document is reported as missing.
func (h *httpHandler) handleGetDocumentSuggestion(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	suggestionID, err := docs.NewSuggestionID(c.Param("suggestion_id"))
	if err != nil {
		respondBadRequest(c, errorReasonInvalidSugg)
		return
	}
	suggestion, err := h.docsService.GetSuggestion(c.Request.Context(), suggestionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if suggestion.DocumentID != documentID.String() {
		respondError(c, docs.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, newSuggestionPayload(suggestion))
}

func (h *httpHandler) handleAcceptSuggestion(c *gin.Context) {
	suggestionID, ok := suggestionIDParam(c)
	if !ok {
		return
	}
	version, err := h.docsService.Accept(c.Request.Context(), suggestionID, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVersionPayload(version))
}

func (h *httpHandler) handleRejectSuggestion(c *gin.Context) {
	suggestionID, ok := suggestionIDParam(c)
	if !ok {
		return
	}
	if err := h.docsService.Reject(c.Request.Context(), suggestionID, callerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
