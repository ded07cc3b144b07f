package dto

import "github.com/usra-dev/usra-api/internal/models"

// CreateChangeRequest is the payload for submitting a change request.
type CreateChangeRequest struct {
	StudentID   string             `json:"student_id" validate:"required"`
	Type        models.RequestType `json:"type" validate:"required,oneof=group section"`
	RequestedID string             `json:"requested_id" validate:"required"`
	Reason      string             `json:"reason" validate:"required"`
	Urgency     int                `json:"urgency" validate:"required,min=1,max=3"`
}

// CreateSwapRequest is the payload for submitting a swap request. A missing
// counterpart publishes the request as an open opportunity.
type CreateSwapRequest struct {
	StudentID            string             `json:"student_id" validate:"required"`
	Type                 models.RequestType `json:"type" validate:"required,oneof=group section"`
	CounterpartStudentID *string            `json:"counterpart_student_id,omitempty"`
	Reason               string             `json:"reason" validate:"required"`
	Urgency              int                `json:"urgency" validate:"required,min=1,max=3"`
}

// ReviewDecision enumerates reviewer outcomes.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// ReviewRequest is the payload for applying a review decision. The comment is
// mandatory when rejecting so the student always learns why.
type ReviewRequest struct {
	RequestID string         `json:"request_id" validate:"required"`
	Decision  ReviewDecision `json:"decision" validate:"required,oneof=approve reject"`
	Comment   string         `json:"comment" validate:"required_if=Decision reject"`
}

// AppealRequest re-submits a rejected request with a new justification.
type AppealRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// CancelRequest withdraws a pending request.
type CancelRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// SwapResponse enumerates a counterpart's answers to a swap request.
type SwapResponse string

const (
	SwapAccept SwapResponse = "accept"
	SwapReject SwapResponse = "reject"
)

// RespondSwapRequest is the payload for answering (or claiming) a swap.
type RespondSwapRequest struct {
	RequestID           string       `json:"request_id" validate:"required"`
	RespondingStudentID string       `json:"responding_student_id" validate:"required"`
	Response            SwapResponse `json:"response" validate:"required,oneof=accept reject"`
	Opportunity         bool         `json:"opportunity"`
}
