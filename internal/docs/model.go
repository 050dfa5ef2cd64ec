package docs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidDocumentID indicates that a document identifier is empty or exceeds storage bounds.
	ErrInvalidDocumentID = errors.New("docs: invalid document id")
	// ErrInvalidVersionID indicates that a version identifier is empty or exceeds storage bounds.
	ErrInvalidVersionID = errors.New("docs: invalid version id")
	// ErrInvalidSuggestionID indicates that a suggestion identifier is empty or exceeds storage bounds.
	ErrInvalidSuggestionID = errors.New("docs: invalid suggestion id")
	// ErrInvalidUserID indicates that a user identifier exceeds storage bounds.
	ErrInvalidUserID = errors.New("docs: invalid user id")
	// ErrInvalidSuggestionStatus indicates an unknown suggestion status value.
	ErrInvalidSuggestionStatus = errors.New("docs: invalid suggestion status")
)

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// DocumentID represents a validated document identifier.
type DocumentID string

// NewDocumentID validates raw input and returns a DocumentID.
func NewDocumentID(rawInput string) (DocumentID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidDocumentID)
	if err != nil {
		return "", err
	}
	return DocumentID(value), nil
}

// String returns the underlying string identifier.
func (id DocumentID) String() string {
	return string(id)
}

// VersionID represents a validated version identifier.
type VersionID string

// NewVersionID validates raw input and returns a VersionID.
func NewVersionID(rawInput string) (VersionID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidVersionID)
	if err != nil {
		return "", err
	}
	return VersionID(value), nil
}

// String returns the underlying string identifier.
func (id VersionID) String() string {
	return string(id)
}

// SuggestionID represents a validated suggestion identifier.
type SuggestionID string

// NewSuggestionID validates raw input and returns a SuggestionID.
func NewSuggestionID(rawInput string) (SuggestionID, error) {
	value, err := validateIdentifier(rawInput, ErrInvalidSuggestionID)
	if err != nil {
		return "", err
	}
	return SuggestionID(value), nil
}

// String returns the underlying string identifier.
func (id SuggestionID) String() string {
	return string(id)
}

// UserID is an opaque, already-resolved caller identity. The empty value
// means the caller is anonymous.
type UserID string

// NewUserID trims raw input and returns a UserID. Empty input yields the
// anonymous identity rather than an error.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Anonymous reports whether no identity was resolved for the caller.
func (id UserID) Anonymous() bool {
	return strings.TrimSpace(string(id)) == ""
}

// SuggestionStatus enumerates the review states of a suggestion.
type SuggestionStatus string

const (
	// SuggestionPending marks a suggestion awaiting review.
	SuggestionPending SuggestionStatus = "pending"
	// SuggestionAccepted marks a suggestion that produced a new version.
	SuggestionAccepted SuggestionStatus = "accepted"
	// SuggestionRejected marks a suggestion that was declined.
	SuggestionRejected SuggestionStatus = "rejected"
)

// ParseSuggestionStatus validates raw input. Empty input returns the empty status.
func ParseSuggestionStatus(rawInput string) (SuggestionStatus, error) {
	switch SuggestionStatus(strings.ToLower(strings.TrimSpace(rawInput))) {
	case "":
		return "", nil
	case SuggestionPending:
		return SuggestionPending, nil
	case SuggestionAccepted:
		return SuggestionAccepted, nil
	case SuggestionRejected:
		return SuggestionRejected, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSuggestionStatus, rawInput)
	}
}

// Resolved reports whether the status is terminal.
func (status SuggestionStatus) Resolved() bool {
	return status == SuggestionAccepted || status == SuggestionRejected
}

// Document is the versioned top-level entity. CurrentVersionID always
// references a Version of the same document once creation has committed.
type Document struct {
	ID               string    `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID          string    `gorm:"column:owner_id;size:190;not null;index:idx_documents_owner_created,priority:1"`
	Title            string    `gorm:"column:title;size:512;not null"`
	CurrentVersionID *string   `gorm:"column:current_version_id;size:190"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;index:idx_documents_owner_created,priority:2"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null"`

	Versions    []Version    `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE"`
	Suggestions []Suggestion `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// Version is an immutable snapshot of document content.
type Version struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	DocumentID   string    `gorm:"column:document_id;size:190;not null;uniqueIndex:idx_versions_document_number,priority:1" json:"document_id"`
	Number       int64     `gorm:"column:number;not null;uniqueIndex:idx_versions_document_number,priority:2" json:"number"`
	Content      string    `gorm:"column:content;type:text;not null" json:"content"`
	AuthorID     string    `gorm:"column:author_id;size:190;not null;default:''" json:"author_id"`
	SuggestionID *string   `gorm:"column:suggestion_id;size:190" json:"suggestion_id,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Version) TableName() string {
	return "versions"
}

// Suggestion is a proposed new version anchored to the version that was
// current when it was submitted.
type Suggestion struct {
	ID              string           `gorm:"column:id;primaryKey;size:190;not null"`
	DocumentID      string           `gorm:"column:document_id;size:190;not null;index:idx_suggestions_document_created,priority:1"`
	Title           string           `gorm:"column:title;size:512;not null"`
	Description     string           `gorm:"column:description;type:text;not null;default:''"`
	Content         string           `gorm:"column:content;type:text;not null"`
	AuthorID        string           `gorm:"column:author_id;size:190;not null;index"`
	BaseVersionID   string           `gorm:"column:base_version_id;size:190;not null"`
	Status          SuggestionStatus `gorm:"column:status;size:16;not null;default:'pending'"`
	CreatedAt       time.Time        `gorm:"column:created_at;not null;index:idx_suggestions_document_created,priority:2"`
	ResolvedAt      *time.Time       `gorm:"column:resolved_at"`
	ResolvedBy      string           `gorm:"column:resolved_by;size:190;not null;default:''"`
	ResultVersionID *string          `gorm:"column:result_version_id;size:190"`
}

// TableName provides the explicit table binding for GORM.
func (Suggestion) TableName() string {
	return "change_suggestions"
}

// DocumentView is a document together with its current version.
type DocumentView struct {
	Document       Document
	CurrentVersion *Version
}

// Models lists every persisted type owned by this package in migration order.
func Models() []any {
	return []any{&Document{}, &Version{}, &Suggestion{}}
}

func stringPointer(value string) *string {
	v := value
	return &v
}
