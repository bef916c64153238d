package types

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a pkg/errors code. RequestID lets an
// operator find the matching log line.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewErrorEnvelope builds an error body without details.
func NewErrorEnvelope(code, message, requestID string) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{Code: code, Message: message, RequestID: requestID}}
}
