package models

// ErrorResponse is the uniform error body for API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
