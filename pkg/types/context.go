package types

type contextKey string

// Context keys populated by the HTTP layer and the batch scheduler.
const (
	ContextKeyUserID        contextKey = "user_id"
	ContextKeySessionID     contextKey = "session_id"
	ContextKeyRequestSource contextKey = "request_source"
	ContextKeyDocumentID    contextKey = "document_id"
)
