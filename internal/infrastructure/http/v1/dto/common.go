// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// IDResponse returns a created entity id.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse is a generic success envelope.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
