package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/services/lending/domain/models"
)

// BorrowRequest is the request body for POST /borrow.
type BorrowRequest struct {
	ItemID string `json:"item_id" validate:"required,uuid" example:"3f6c1a52-8f0e-4c1e-9a55-1c2d3e4f5a6b"`
} // @name BorrowRequest

// RecordResponse is the wire form of a lending record. Status is the
// effective status, so a late loan reads "overdue".
type RecordResponse struct {
	ID         uuid.UUID  `json:"id"                    example:"123e4567-e89b-12d3-a456-426614174000"`
	HolderID   uuid.UUID  `json:"holder_id"             example:"550e8400-e29b-41d4-a716-446655440000"`
	ItemID     uuid.UUID  `json:"item_id"               example:"3f6c1a52-8f0e-4c1e-9a55-1c2d3e4f5a6b"`
	ItemTitle  string     `json:"item_title,omitempty"  example:"The Go Programming Language"`
	BorrowedAt time.Time  `json:"borrowed_at"           example:"2026-01-15T10:30:00Z"`
	DueAt      time.Time  `json:"due_at"                example:"2026-01-29T10:30:00Z"`
	ReturnedAt *time.Time `json:"returned_at,omitempty" example:"2026-01-20T09:00:00Z"`
	Status     string     `json:"status"                example:"borrowed" enums:"borrowed,returned,overdue"`
} // @name RecordResponse

// ReturnResponse confirms a completed return.
type ReturnResponse struct {
	RecordID   uuid.UUID `json:"record_id"   example:"123e4567-e89b-12d3-a456-426614174000"`
	ItemID     uuid.UUID `json:"item_id"     example:"3f6c1a52-8f0e-4c1e-9a55-1c2d3e4f5a6b"`
	ReturnedAt time.Time `json:"returned_at" example:"2026-01-20T09:00:00Z"`
} // @name ReturnResponse

// RecordEnvelope wraps a single record.
type RecordEnvelope struct {
	Success bool           `json:"success" example:"true"`
	Data    RecordResponse `json:"data"`
	Message string         `json:"message,omitempty" example:"item borrowed successfully"`
} // @name RecordEnvelope

// RecordListEnvelope wraps a page of records.
type RecordListEnvelope struct {
	Success bool             `json:"success" example:"true"`
	Data    []RecordResponse `json:"data"`
} // @name RecordListEnvelope

// ReturnEnvelope wraps a return confirmation.
type ReturnEnvelope struct {
	Success bool           `json:"success" example:"true"`
	Data    ReturnResponse `json:"data"`
	Message string         `json:"message,omitempty" example:"item returned successfully"`
} // @name ReturnEnvelope

// AvailabilityEnvelope wraps an availability snapshot.
type AvailabilityEnvelope struct {
	Success bool                `json:"success" example:"true"`
	Data    models.Availability `json:"data"`
} // @name AvailabilityEnvelope

// MessageEnvelope is a success response with no data.
type MessageEnvelope struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"lending record deleted"`
} // @name MessageEnvelope

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"item not available"`
} // @name ErrorResponse

func toRecordResponse(r *models.LendingRecord) RecordResponse {
	return RecordResponse{
		ID:         r.ID,
		HolderID:   r.HolderID,
		ItemID:     r.ItemID,
		ItemTitle:  r.ItemTitle,
		BorrowedAt: r.BorrowedAt,
		DueAt:      r.DueAt,
		ReturnedAt: r.ReturnedAt,
		Status:     string(r.Status),
	}
}

func toRecordResponses(records []*models.LendingRecord) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, r := range records {
		out[i] = toRecordResponse(r)
	}
	return out
}
