package docs

// Action names an operation subject to the access policy.
type Action string

const (
	ActionSuggest Action = "suggest"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionDelete  Action = "delete"
)

// Allowed decides whether caller may perform action on document. It has no
// side effects and never consults storage.
func Allowed(caller UserID, document Document, action Action) bool {
	if caller.Anonymous() {
		return false
	}
	switch action {
	case ActionSuggest:
		return true
	case ActionAccept, ActionReject, ActionDelete:
		return caller.String() == document.OwnerID
	default:
		return false
	}
}

// CanSuggest reports whether caller may submit suggestions against document.
func CanSuggest(caller UserID, document Document) bool {
	return Allowed(caller, document, ActionSuggest)
}

// CanAccept reports whether caller may resolve suggestions on document.
// Only the owner reviews; there is no separate reviewer role.
func CanAccept(caller UserID, document Document) bool {
	return Allowed(caller, document, ActionAccept)
}

// CanDelete reports whether caller may delete document.
func CanDelete(caller UserID, document Document) bool {
	return Allowed(caller, document, ActionDelete)
}
