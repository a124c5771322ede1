// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"softdeletes/internal/core/entity"
)

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Base DTOs ---

// BaseResponse contains common response fields.
type BaseResponse struct {
	ID        string     `json:"id"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	Deleted   bool       `json:"deleted"`
}

// FromModel creates BaseResponse from entity.Model.
func FromModel(m entity.Model) BaseResponse {
	return BaseResponse{
		ID:        m.ID.String(),
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
		Deleted:   m.IsDeleted(),
	}
}

// --- Delete Response ---

// DeleteResponse reports how many rows a delete wrote, dependents included.
type DeleteResponse struct {
	Affected int64  `json:"affected"`
	Mode     string `json:"mode"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
