package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func documentIDParam(c *gin.Context) (docs.DocumentID, bool) {
	documentID, err := docs.NewDocumentID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, errorReasonInvalidDocument)
		return "", false
	}
	return documentID, true
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	ownerID, err := docs.NewUserID(c.Query("owner"))
	if err != nil {
		respondBadRequest(c, errorReasonInvalidRequest)
		return
	}
	documents, err := h.docsService.ListDocuments(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	response := make([]documentPayload, 0, len(documents))
	for _, document := range documents {
		response = append(response, newDocumentPayload(document, nil))
	}
	c.JSON(http.StatusOK, gin.H{"documents": response})
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	var request createDocumentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBadRequest(c, errorReasonInvalidRequest)
		return
	}
	view, err := h.docsService.Create(c.Request.Context(), docs.CreateDocumentRequest{
		OwnerID: callerID(c),
		Title:   request.Title,
		Content: request.Content,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Location", "/documents/"+view.Document.ID)
	c.JSON(http.StatusCreated, newDocumentPayload(view.Document, view.CurrentVersion))
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	view, err := h.docsService.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentPayload(view.Document, view.CurrentVersion))
}

// handleDeleteDocument answers 204 whether the document was deleted, belongs
// to someone else, or never existed, so callers cannot discover which documents exist.
func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	err := h.docsService.Delete(c.Request.Context(), documentID, callerID(c))
	switch docs.Kind(err) {
	case "":
	case docs.KindForbidden, docs.KindNotFound:
		h.logger.Info("document delete suppressed",
			zap.String("document_id", documentID.String()),
			zap.String("outcome", docs.Kind(err)))
	default:
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListVersions(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	versions, err := h.docsService.ListVersions(c.Request.Context(), documentID)
	if err != nil {
		respondError(c, err)
		return
	}
	response := make([]versionPayload, 0, len(versions))
	for _, version := range versions {
		response = append(response, newVersionPayload(version))
	}
	c.JSON(http.StatusOK, gin.H{"versions": response})
}

func (h *httpHandler) handleGetVersion(c *gin.Context) {
	versionID, err := docs.NewVersionID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, errorReasonInvalidVersion)
		return
	}
	version, err := h.docsService.GetVersion(c.Request.Context(), versionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVersionPayload(version))
}
