package server

import (
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
)

type createDocumentRequestPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type submitSuggestionRequestPayload struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

type documentPayload struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	Title            string          `json:"title"`
	CurrentVersionID *string         `json:"current_version_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CurrentVersion   *versionPayload `json:"current_version,omitempty"`
}

type versionPayload struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Number       int64     `json:"number"`
	Content      string    `json:"content"`
	AuthorID     string    `json:"author_id"`
	SuggestionID *string   `json:"suggestion_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type suggestionPayload struct {
	ID              string     `json:"id"`
	DocumentID      string     `json:"document_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Content         string     `json:"content"`
	AuthorID        string     `json:"author_id"`
	BaseVersionID   string     `json:"base_version_id"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResultVersionID *string    `json:"result_version_id,omitempty"`
}

type eventPayload struct {
	Type         string    `json:"type"`
	DocumentID   string    `json:"document_id"`
	SuggestionID string    `json:"suggestion_id,omitempty"`
	VersionID    string    `json:"version_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func newDocumentPayload(document docs.Document, current *docs.Version) documentPayload {
	payload := documentPayload{
		ID:               document.ID,
		OwnerID:          document.OwnerID,
		Title:            document.Title,
		CurrentVersionID: document.CurrentVersionID,
		CreatedAt:        document.CreatedAt,
		UpdatedAt:        document.UpdatedAt,
	}
	if current != nil {
		version := newVersionPayload(*current)
		payload.CurrentVersion = &version
	}
	return payload
}

func newVersionPayload(version docs.Version) versionPayload {
	return versionPayload{
		ID:           version.ID,
		DocumentID:   version.DocumentID,
		Number:       version.Number,
		Content:      version.Content,
		AuthorID:     version.AuthorID,
		SuggestionID: version.SuggestionID,
		CreatedAt:    version.CreatedAt,
	}
}

func newSuggestionPayload(suggestion docs.Suggestion) suggestionPayload {
	return suggestionPayload{
		ID:              suggestion.ID,
		DocumentID:      suggestion.DocumentID,
		Title:           suggestion.Title,
		Description:     suggestion.Description,
		Content:         suggestion.Content,
		AuthorID:        suggestion.AuthorID,
		BaseVersionID:   suggestion.BaseVersionID,
		Status:          string(suggestion.Status),
		CreatedAt:       suggestion.CreatedAt,
		ResolvedAt:      suggestion.ResolvedAt,
		ResolvedBy:      suggestion.ResolvedBy,
		ResultVersionID: suggestion.ResultVersionID,
	}
}

func newEventPayload(event docs.Event) eventPayload {
	return eventPayload{
		Type:         string(event.Type),
		DocumentID:   event.DocumentID,
		SuggestionID: event.SuggestionID,
		VersionID:    event.VersionID,
		ActorID:      event.ActorID,
		Timestamp:    event.Timestamp,
	}
}
