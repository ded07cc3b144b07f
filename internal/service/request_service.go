package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	"github.com/usra-dev/usra-api/internal/repository"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	HasActive(ctx context.Context, studentID string, reqType models.RequestType) (bool, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRow, int, error)
	ListSwaps(ctx context.Context, filter models.SwapFilter) ([]models.SwapRow, int, error)
	ApproveChange(ctx context.Context, params repository.ApproveChangeParams) error
	ApproveSwap(ctx context.Context, params repository.ApproveSwapParams) error
	Reject(ctx context.Context, params repository.RejectParams) error
	Appeal(ctx context.Context, params repository.AppealParams) error
	Cancel(ctx context.Context, params repository.CancelParams) error
}

type studentDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type academicDirectory interface {
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	GetSection(ctx context.Context, id string) (*models.Section, error)
}

type teacherDirectory interface {
	ListUserIDsByGroup(ctx context.Context, groupID string) ([]string, error)
	ListUserIDsBySection(ctx context.Context, sectionID string) ([]string, error)
}

type staffDirectory interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// RequestService orchestrates the change/swap workflow: submissions, review
// decisions, counterpart responses, appeals and cancellations. All enrollment
// mutations are delegated to the repository so they commit atomically with the
// request transition and its notifications. Student-side operations act on
// the student resolved from the caller's claims, never on a body-supplied
// identity alone.
type RequestService struct {
	requests  requestStore
	students  studentDirectory
	academic  academicDirectory
	teachers  teacherDirectory
	staff     staffDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs the service.
func NewRequestService(requests requestStore, students studentDirectory, academic academicDirectory, teachers teacherDirectory, staff staffDirectory, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{
		requests:  requests,
		students:  students,
		academic:  academic,
		teachers:  teachers,
		staff:     staff,
		validator: validate,
		logger:    logger,
	}
}

// SubmitChange validates and stores a new group or section change request on
// behalf of the authenticated student.
func (s *RequestService) SubmitChange(ctx context.Context, req dto.CreateChangeRequest, actor *models.JWTClaims) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change request payload")
	}
	student, err := s.actorStudent(ctx, actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	active, err := s.requests.HasActive(ctx, student.ID, req.Type)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active requests")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student already has an active %s request", req.Type))
	}

	var kind models.RequestKind
	var currentID string
	switch req.Type {
	case models.RequestTypeGroup:
		group, err := s.academic.GetGroup(ctx, req.RequestedID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "requested group not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested group")
		}
		if group.SectionID != student.SectionID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requested group is outside the student's section")
		}
		kind = models.KindChangeGroup
		currentID = student.TutorialGroupID
		if group.Type == models.GroupTypeLab {
			currentID = student.LabGroupID
		}
	case models.RequestTypeSection:
		section, err := s.academic.GetSection(ctx, req.RequestedID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "requested section not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested section")
		}
		if section.SpecialityID != student.SpecialityID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requested section is outside the student's speciality")
		}
		kind = models.KindChangeSection
		currentID = student.SectionID
	}
	if currentID == req.RequestedID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is already placed in the requested target")
	}

	request := &models.Request{
		StudentID:   student.ID,
		Kind:        kind,
		Status:      models.RequestStatusPending,
		Reason:      strings.TrimSpace(req.Reason),
		Urgency:     req.Urgency,
		CurrentID:   &currentID,
		RequestedID: &req.RequestedID,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.logger.Info("change request submitted",
		zap.String("request_id", request.ID),
		zap.String("student_id", student.ID),
		zap.String("kind", string(kind)))
	return request, nil
}

// SubmitSwap validates and stores a new swap request. A missing counterpart
// publishes it as an open opportunity any eligible student may claim.
func (s *RequestService) SubmitSwap(ctx context.Context, req dto.CreateSwapRequest, actor *models.JWTClaims) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap request payload")
	}
	student, err := s.actorStudent(ctx, actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	active, err := s.requests.HasActive(ctx, student.ID, models.RequestTypeSwap)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active requests")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active swap request")
	}

	if req.CounterpartStudentID != nil {
		counterpart, err := s.loadStudent(ctx, *req.CounterpartStudentID)
		if err != nil {
			return nil, err
		}
		if err := checkSwapEligibility(student, counterpart); err != nil {
			return nil, err
		}
	}

	kind := models.KindSwapGroup
	if req.Type == models.RequestTypeSection {
		kind = models.KindSwapSection
	}
	request := &models.Request{
		StudentID:            student.ID,
		Kind:                 kind,
		Status:               models.RequestStatusPending,
		Reason:               strings.TrimSpace(req.Reason),
		Urgency:              req.Urgency,
		CounterpartStudentID: req.CounterpartStudentID,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create swap request")
	}
	s.logger.Info("swap request submitted",
		zap.String("request_id", request.ID),
		zap.String("student_id", student.ID),
		zap.Bool("opportunity", req.CounterpartStudentID == nil))
	return request, nil
}

// VerifySwapEligibility checks whether two students may exchange placements.
func (s *RequestService) VerifySwapEligibility(ctx context.Context, studentID, counterpartID string) error {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return err
	}
	counterpart, err := s.loadStudent(ctx, counterpartID)
	if err != nil {
		return err
	}
	return checkSwapEligibility(student, counterpart)
}

// Review applies a staff decision to a pending or appealed request. Approval
// of a change moves exactly one enrollment slot; approval of a swap exchanges
// both students' placements. Rejections must carry a comment.
func (s *RequestService) Review(ctx context.Context, req dto.ReviewRequest, reviewer *models.JWTClaims) (*models.Request, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	request, err := s.loadRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if !request.Status.Reviewable() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request is %s and cannot be reviewed", strings.ToLower(string(request.Status))))
	}

	student, err := s.loadStudent(ctx, request.StudentID)
	if err != nil {
		return nil, err
	}
	comment := optionalString(req.Comment)

	switch req.Decision {
	case dto.DecisionReject:
		if comment == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a comment is required when rejecting a request")
		}
		notifications := []models.Notification{rejectedNotification(student.UserID, request)}
		if err := s.requests.Reject(ctx, repository.RejectParams{
			RequestID:     request.ID,
			ReviewedBy:    reviewer.UserID,
			Comment:       comment,
			Notifications: notifications,
		}); err != nil {
			return nil, s.mapTransitionErr(err, "reject request")
		}
		request.Status = models.RequestStatusRejected
	case dto.DecisionApprove:
		if request.Kind.IsSwap() {
			if request.CounterpartStudentID == nil {
				return nil, appErrors.Clone(appErrors.ErrInvalidState, "swap request has no counterpart yet")
			}
			if err := s.approveSwap(ctx, request, student, *request.CounterpartStudentID, reviewer.UserID, comment, false); err != nil {
				return nil, err
			}
		} else {
			if err := s.approveChange(ctx, request, student, reviewer.UserID, comment); err != nil {
				return nil, err
			}
		}
		request.Status = models.RequestStatusApproved
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approve or reject")
	}

	s.logger.Info("request reviewed",
		zap.String("request_id", request.ID),
		zap.String("decision", string(req.Decision)),
		zap.String("reviewed_by", reviewer.UserID))
	return request, nil
}

// RespondToSwap records the counterpart's answer. Accepting completes the
// exchange; rejecting closes the request. Open opportunities are claimed by
// the first eligible responder.
func (s *RequestService) RespondToSwap(ctx context.Context, req dto.RespondSwapRequest, actor *models.JWTClaims) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap response payload")
	}
	responder, err := s.actorStudent(ctx, actor, req.RespondingStudentID)
	if err != nil {
		return nil, err
	}
	request, err := s.loadRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if !request.Kind.IsSwap() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request is not a swap")
	}
	if !request.Status.Reviewable() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request is %s and cannot be answered", strings.ToLower(string(request.Status))))
	}
	if responder.ID == request.StudentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students cannot answer their own swap request")
	}

	claiming := request.CounterpartStudentID == nil
	if !claiming && *request.CounterpartStudentID != responder.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "swap request is addressed to another student")
	}

	owner, err := s.loadStudent(ctx, request.StudentID)
	if err != nil {
		return nil, err
	}

	switch req.Response {
	case dto.SwapReject:
		if claiming {
			return nil, appErrors.Clone(appErrors.ErrValidation, "open opportunities can only be accepted")
		}
		notifications := []models.Notification{{
			UserID:  owner.UserID,
			Title:   "Swap declined",
			Message: fmt.Sprintf("%s %s declined your swap request.", responder.FirstName, responder.LastName),
			Type:    models.NotificationWarning,
		}}
		if err := s.requests.Reject(ctx, repository.RejectParams{
			RequestID:     request.ID,
			ReviewedBy:    responder.UserID,
			Notifications: notifications,
		}); err != nil {
			return nil, s.mapTransitionErr(err, "decline swap")
		}
		request.Status = models.RequestStatusRejected
	case dto.SwapAccept:
		if err := checkSwapEligibility(owner, responder); err != nil {
			return nil, err
		}
		if err := s.approveSwap(ctx, request, owner, responder.ID, responder.UserID, nil, claiming); err != nil {
			return nil, err
		}
		request.Status = models.RequestStatusApproved
		request.CounterpartStudentID = &responder.ID
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "response must be accept or reject")
	}

	s.logger.Info("swap answered",
		zap.String("request_id", request.ID),
		zap.String("responding_student_id", responder.ID),
		zap.String("response", string(req.Response)))
	return request, nil
}

// Appeal moves a rejected request back into the review queue with a fresh
// justification and alerts all staff.
func (s *RequestService) Appeal(ctx context.Context, req dto.AppealRequest, actor *models.JWTClaims) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appeal payload")
	}
	student, err := s.actorStudent(ctx, actor, req.StudentID)
	if err != nil {
		return nil, err
	}
	request, err := s.loadRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if request.StudentID != student.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting student may appeal")
	}
	if request.Status != models.RequestStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only rejected requests can be appealed")
	}

	staffIDs, err := s.staff.ListUserIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staff recipients")
	}
	notifications := make([]models.Notification, 0, len(staffIDs))
	for _, userID := range staffIDs {
		notifications = append(notifications, models.Notification{
			UserID:  userID,
			Title:   "Request appealed",
			Message: fmt.Sprintf("A rejected %s request was appealed and needs another review.", request.Kind.Type()),
			Type:    models.NotificationWarning,
		})
	}

	if err := s.requests.Appeal(ctx, repository.AppealParams{
		RequestID:     request.ID,
		Reason:        strings.TrimSpace(req.Reason),
		Notifications: notifications,
	}); err != nil {
		return nil, s.mapTransitionErr(err, "appeal request")
	}
	request.Status = models.RequestStatusAppealed
	request.Reason = strings.TrimSpace(req.Reason)

	s.logger.Info("request appealed", zap.String("request_id", request.ID))
	return request, nil
}

// Cancel withdraws a pending request. Reviewed requests cannot be withdrawn.
func (s *RequestService) Cancel(ctx context.Context, req dto.CancelRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	student, err := s.actorStudent(ctx, actor, req.StudentID)
	if err != nil {
		return err
	}
	request, err := s.loadRequest(ctx, req.RequestID)
	if err != nil {
		return err
	}
	if request.StudentID != student.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requesting student may cancel")
	}

	notifications := []models.Notification{{
		UserID:  student.UserID,
		Title:   "Request cancelled",
		Message: fmt.Sprintf("Your %s request was cancelled.", request.Kind.Type()),
		Type:    models.NotificationInfo,
	}}

	if err := s.requests.Cancel(ctx, repository.CancelParams{
		RequestID:     request.ID,
		Notifications: notifications,
	}); err != nil {
		return s.mapTransitionErr(err, "cancel request")
	}

	s.logger.Info("request cancelled", zap.String("request_id", request.ID))
	return nil
}

// Get returns a request with the student's current enrollment snapshot.
// Students may only read their own requests.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.RequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, request.StudentID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && student.UserID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return &models.RequestDetail{
		Request: *request,
		Student: *student,
		Enrollment: models.Enrollment{
			SpecialityID:    student.SpecialityID,
			SectionID:       student.SectionID,
			TutorialGroupID: student.TutorialGroupID,
			LabGroupID:      student.LabGroupID,
		},
	}, nil
}

// List returns the request feed. Student actors are scoped to their own
// submissions regardless of the filter they pass.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter, actor *models.JWTClaims) ([]models.RequestRow, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		student, err := s.students.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, 0, appErrors.ErrForbidden
			}
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
		}
		filter.StudentID = student.ID
	}
	rows, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return rows, total, nil
}

// ListSwaps returns the normalized swap feed, optionally narrowed to open
// opportunities.
func (s *RequestService) ListSwaps(ctx context.Context, filter models.SwapFilter, actor *models.JWTClaims) ([]models.SwapRow, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	rows, total, err := s.requests.ListSwaps(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swap requests")
	}
	return rows, total, nil
}

func (s *RequestService) approveChange(ctx context.Context, request *models.Request, student *models.Student, reviewerID string, comment *string) error {
	if request.RequestedID == nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "change request has no target")
	}
	targetID := *request.RequestedID

	var column, targetLabel string
	var teacherIDs []string
	var err error
	switch request.Kind {
	case models.KindChangeGroup:
		group, gerr := s.academic.GetGroup(ctx, targetID)
		if gerr != nil {
			if errors.Is(gerr, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "requested group no longer exists")
			}
			return appErrors.Wrap(gerr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested group")
		}
		column = "tutorial_group_id"
		if group.Type == models.GroupTypeLab {
			column = "lab_group_id"
		}
		targetLabel = fmt.Sprintf("group %s", group.Name)
		teacherIDs, err = s.teachers.ListUserIDsByGroup(ctx, group.ID)
	case models.KindChangeSection:
		section, serr := s.academic.GetSection(ctx, targetID)
		if serr != nil {
			if errors.Is(serr, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "requested section no longer exists")
			}
			return appErrors.Wrap(serr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested section")
		}
		column = "section_id"
		targetLabel = fmt.Sprintf("section %s", section.Name)
		teacherIDs, err = s.teachers.ListUserIDsBySection(ctx, section.ID)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "request is not a change request")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher recipients")
	}

	notifications := make([]models.Notification, 0, len(teacherIDs)+1)
	notifications = append(notifications, models.Notification{
		UserID:  student.UserID,
		Title:   "Request approved",
		Message: fmt.Sprintf("Your request to move to %s was approved.", targetLabel),
		Type:    models.NotificationSuccess,
	})
	for _, userID := range teacherIDs {
		notifications = append(notifications, models.Notification{
			UserID:  userID,
			Title:   "New student placement",
			Message: fmt.Sprintf("%s %s joins %s.", student.FirstName, student.LastName, targetLabel),
			Type:    models.NotificationInfo,
		})
	}

	if err := s.requests.ApproveChange(ctx, repository.ApproveChangeParams{
		RequestID:     request.ID,
		StudentID:     student.ID,
		Column:        column,
		TargetID:      targetID,
		ReviewedBy:    reviewerID,
		Comment:       comment,
		Notifications: notifications,
	}); err != nil {
		return s.mapTransitionErr(err, "approve change")
	}
	return nil
}

func (s *RequestService) approveSwap(ctx context.Context, request *models.Request, owner *models.Student, counterpartID, reviewerID string, comment *string, claiming bool) error {
	counterpart, err := s.loadStudent(ctx, counterpartID)
	if err != nil {
		return err
	}
	if err := checkSwapEligibility(owner, counterpart); err != nil {
		return err
	}

	what := "tutorial and lab groups"
	if request.Kind == models.KindSwapSection {
		what = "sections and groups"
	}
	notifications := []models.Notification{
		{
			UserID:  owner.UserID,
			Title:   "Swap completed",
			Message: fmt.Sprintf("You exchanged %s with %s %s.", what, counterpart.FirstName, counterpart.LastName),
			Type:    models.NotificationSuccess,
		},
		{
			UserID:  counterpart.UserID,
			Title:   "Swap completed",
			Message: fmt.Sprintf("You exchanged %s with %s %s.", what, owner.FirstName, owner.LastName),
			Type:    models.NotificationSuccess,
		},
	}

	if err := s.requests.ApproveSwap(ctx, repository.ApproveSwapParams{
		RequestID:        request.ID,
		StudentID:        owner.ID,
		CounterpartID:    counterpart.ID,
		IncludeSection:   request.Kind == models.KindSwapSection,
		ClaimCounterpart: claiming,
		ReviewedBy:       reviewerID,
		Comment:          comment,
		Notifications:    notifications,
	}); err != nil {
		return s.mapTransitionErr(err, "approve swap")
	}
	return nil
}

// actorStudent resolves the student profile behind the caller's claims and
// rejects payloads naming anybody else. Ownership checks downstream can then
// trust the student identity.
func (s *RequestService) actorStudent(ctx context.Context, actor *models.JWTClaims, claimedID string) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	student, err := s.students.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no student profile")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if claimedID != "" && claimedID != student.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student_id does not match the authenticated student")
	}
	return student, nil
}

func (s *RequestService) loadRequest(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// mapTransitionErr converts a guarded-update miss into the workflow conflict
// it really is: by the time the write landed, another actor had already moved
// the request out of the expected state.
func (s *RequestService) mapTransitionErr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidState, "request was already processed")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+op)
}

// checkSwapEligibility enforces the pairing rules for an exchange. Placement
// differences are intentionally not compared here: the swap exchanges
// whatever slots the two students hold at approval time.
func checkSwapEligibility(a, b *models.Student) error {
	if a.ID == b.ID {
		return appErrors.Clone(appErrors.ErrValidation, "students cannot swap with themselves")
	}
	if a.SpecialityID != b.SpecialityID {
		return appErrors.Clone(appErrors.ErrValidation, "students must share a speciality to swap")
	}
	return nil
}

func rejectedNotification(userID string, request *models.Request) models.Notification {
	return models.Notification{
		UserID:  userID,
		Title:   "Request rejected",
		Message: fmt.Sprintf("Your %s request was rejected.", request.Kind.Type()),
		Type:    models.NotificationWarning,
	}
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
