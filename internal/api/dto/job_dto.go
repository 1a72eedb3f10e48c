package dto

// Response is the envelope used by every route except GET /data
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ListJobsRequest struct {
	Status string `form:"status"`
}

// DenyRequest carries an optional reason; a missing reason keeps the stored one
type DenyRequest struct {
	Reason *string `json:"reason"`
}

type TrackingRequest struct {
	TrackingStatus string `json:"trackingStatus" binding:"required"`
}

type MoveRequest struct {
	NewStatus string `json:"newStatus" binding:"required"`
}

type CreateIngestionRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=500"`
}

type IngestionResponse struct {
	RequestID   string `json:"request_id"`
	Limit       int    `json:"limit,omitempty"`
	RequestedAt string `json:"requested_at"`
	Status      string `json:"status"`
}
