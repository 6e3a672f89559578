package common

// ErrorResponse represents a standard error response used across all services
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`    // stable machine-readable code
	Service string                 `json:"service,omitempty"` // which service generated the error
	Details map[string]interface{} `json:"details,omitempty"` // additional error context
}

// SuccessResponse represents a standard success response used across all services
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
