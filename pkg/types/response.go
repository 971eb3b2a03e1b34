package types

// ErrorEnvelope is the body of every non-2xx API response. RequestID echoes
// the X-Request-Id header so support can find the matching log entries.
type ErrorEnvelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// OKEnvelope is the body of commands that return no resource, such as an
// owner cancel or a recovered paid email.
type OKEnvelope struct {
	OK bool `json:"ok"`
}
