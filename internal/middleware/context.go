package middleware

// Context keys used to store request metadata.
const (
	ContextKeySubject   = "subject"
	ContextKeyScopes    = "scopes"
	ContextKeyRequestID = "request_id"
)
