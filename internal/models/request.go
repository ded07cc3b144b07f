package models

import "time"

// RequestKind tags the variant carried by a request row. Storing the tag on
// the base record is the single source of truth for a request's type; there
// are no per-kind side tables to classify against.
type RequestKind string

const (
	KindChangeGroup   RequestKind = "CHANGE_GROUP"
	KindChangeSection RequestKind = "CHANGE_SECTION"
	KindSwapGroup     RequestKind = "SWAP_GROUP"
	KindSwapSection   RequestKind = "SWAP_SECTION"
)

// RequestType is the coarse request classification used for filtering and
// for the one-active-request-per-student rule.
type RequestType string

const (
	RequestTypeGroup   RequestType = "group"
	RequestTypeSection RequestType = "section"
	RequestTypeSwap    RequestType = "swap"
)

// Type derives the logical request type from the kind tag.
func (k RequestKind) Type() RequestType {
	switch k {
	case KindChangeGroup:
		return RequestTypeGroup
	case KindChangeSection:
		return RequestTypeSection
	default:
		return RequestTypeSwap
	}
}

// IsSwap reports whether the kind is one of the swap variants.
func (k RequestKind) IsSwap() bool {
	return k == KindSwapGroup || k == KindSwapSection
}

// ValidRequestKind reports whether k is a known kind tag.
func ValidRequestKind(k RequestKind) bool {
	switch k {
	case KindChangeGroup, KindChangeSection, KindSwapGroup, KindSwapSection:
		return true
	default:
		return false
	}
}

// ValidRequestType reports whether t is a known logical type.
func ValidRequestType(t RequestType) bool {
	switch t {
	case RequestTypeGroup, RequestTypeSection, RequestTypeSwap:
		return true
	default:
		return false
	}
}

// RequestStatus captures workflow states for change and swap requests.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
	RequestStatusAppealed RequestStatus = "APPEALED"
)

// ValidRequestStatus reports whether s is a known workflow state.
func ValidRequestStatus(s RequestStatus) bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusAppealed:
		return true
	default:
		return false
	}
}

// Reviewable reports whether a review decision may be applied from s.
func (s RequestStatus) Reviewable() bool {
	return s == RequestStatusPending || s == RequestStatusAppealed
}

// Urgency levels for requests.
const (
	UrgencyLow    = 1
	UrgencyMedium = 2
	UrgencyHigh   = 3
)

// ValidUrgency reports whether u is within the allowed range.
func ValidUrgency(u int) bool {
	return u >= UrgencyLow && u <= UrgencyHigh
}

// Request stores a change or swap request awaiting review. The variant
// columns are interpreted through the Kind tag:
//
//	CHANGE_GROUP / CHANGE_SECTION: CurrentID and RequestedID point at a
//	group or section respectively.
//	SWAP_GROUP / SWAP_SECTION: CounterpartStudentID names the student to
//	swap with; NULL marks an open opportunity.
type Request struct {
	ID                   string        `db:"id" json:"id"`
	StudentID            string        `db:"student_id" json:"student_id"`
	Kind                 RequestKind   `db:"kind" json:"kind"`
	Status               RequestStatus `db:"status" json:"status"`
	Reason               string        `db:"reason" json:"reason"`
	Urgency              int           `db:"urgency" json:"urgency"`
	CurrentID            *string       `db:"current_id" json:"current_id,omitempty"`
	RequestedID          *string       `db:"requested_id" json:"requested_id,omitempty"`
	CounterpartStudentID *string       `db:"counterpart_student_id" json:"counterpart_student_id,omitempty"`
	ReviewComment        *string       `db:"review_comment" json:"review_comment,omitempty"`
	ReviewedBy           *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// RequestRow is a listing projection joining the student's name.
type RequestRow struct {
	Request
	StudentFirstName string `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string `db:"student_last_name" json:"student_last_name"`
}

// RequestDetail embeds a snapshot of the student's current enrollment.
type RequestDetail struct {
	Request
	Student    Student    `json:"student"`
	Enrollment Enrollment `json:"enrollment"`
}

// RequestFilter constrains listing queries over the request feed.
type RequestFilter struct {
	Search    string
	StudentID string
	Status    RequestStatus
	Type      RequestType
	Urgency   int
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// SwapFilter constrains the swap/opportunity feed.
type SwapFilter struct {
	Search          string
	StudentID       string
	Status          RequestStatus
	Urgency         int
	StartDate       *time.Time
	EndDate         *time.Time
	OpportunityOnly bool
	Page            int
	PageSize        int
}

// SwapRow is the normalized projection over both swap variants.
type SwapRow struct {
	RequestID            string        `db:"request_id" json:"request_id"`
	Kind                 RequestKind   `db:"kind" json:"kind"`
	StudentID            string        `db:"student_id" json:"student_id"`
	StudentFirstName     string        `db:"student_first_name" json:"student_first_name"`
	StudentLastName      string        `db:"student_last_name" json:"student_last_name"`
	Status               RequestStatus `db:"status" json:"status"`
	Urgency              int           `db:"urgency" json:"urgency"`
	CurrentGroupID       *string       `db:"current_group_id" json:"current_group_id,omitempty"`
	CurrentGroupName     *string       `db:"current_group_name" json:"current_group_name,omitempty"`
	CurrentSectionID     *string       `db:"current_section_id" json:"current_section_id,omitempty"`
	CurrentSectionName   *string       `db:"current_section_name" json:"current_section_name,omitempty"`
	CounterpartStudentID *string       `db:"counterpart_student_id" json:"counterpart_student_id,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}
