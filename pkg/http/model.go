package http

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error   string            `json:"error" example:"model for FAKE.ZZ not available"`
	Code    string            `json:"code" example:"ERR_NOT_FOUND"`
	Details []ValidationError `json:"details,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"ticker"`
	Message string                 `json:"message,omitempty" example:"ticker is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
