package docs

import "time"

// EventType names a change that subscribers of a document may observe.
type EventType string

const (
	EventSuggestionSubmitted EventType = "suggestion.submitted"
	EventSuggestionAccepted  EventType = "suggestion.accepted"
	EventSuggestionRejected  EventType = "suggestion.rejected"
	EventDocumentDeleted     EventType = "document.deleted"
)

// Event describes a committed change to a document.
type Event struct {
	Type         EventType
	DocumentID   string
	SuggestionID string
	VersionID    string
	ActorID      string
	Timestamp    time.Time
}

// EventPublisher receives events after the originating transaction commits.
// Publish must not block.
type EventPublisher interface {
	Publish(event Event)
}
