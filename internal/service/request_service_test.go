package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	"github.com/usra-dev/usra-api/internal/repository"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type requestStoreStub struct {
	requests      map[string]*models.Request
	students      *studentDirStub
	notifications []models.Notification
	seq           int
}

func newRequestStoreStub(students *studentDirStub) *requestStoreStub {
	return &requestStoreStub{requests: make(map[string]*models.Request), students: students}
}

func (s *requestStoreStub) Create(ctx context.Context, request *models.Request) error {
	s.seq++
	request.ID = fmt.Sprintf("req-%d", s.seq)
	copy := *request
	s.requests[request.ID] = &copy
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.Request, error) {
	if req, ok := s.requests[id]; ok {
		copy := *req
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) HasActive(ctx context.Context, studentID string, reqType models.RequestType) (bool, error) {
	for _, req := range s.requests {
		if req.StudentID != studentID || req.Kind.Type() != reqType {
			continue
		}
		if req.Status == models.RequestStatusPending || req.Status == models.RequestStatusAppealed {
			return true, nil
		}
	}
	return false, nil
}

func (s *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRow, int, error) {
	rows := make([]models.RequestRow, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.StudentID != "" && req.StudentID != filter.StudentID {
			continue
		}
		rows = append(rows, models.RequestRow{Request: *req})
	}
	return rows, len(rows), nil
}

func (s *requestStoreStub) ListSwaps(ctx context.Context, filter models.SwapFilter) ([]models.SwapRow, int, error) {
	return nil, 0, nil
}

func (s *requestStoreStub) ApproveChange(ctx context.Context, params repository.ApproveChangeParams) error {
	req, ok := s.requests[params.RequestID]
	if !ok || !req.Status.Reviewable() {
		return sql.ErrNoRows
	}
	student := s.students.records[params.StudentID]
	switch params.Column {
	case "tutorial_group_id":
		student.TutorialGroupID = params.TargetID
	case "lab_group_id":
		student.LabGroupID = params.TargetID
	case "section_id":
		student.SectionID = params.TargetID
	default:
		return fmt.Errorf("unexpected column %s", params.Column)
	}
	req.Status = models.RequestStatusApproved
	req.ReviewedBy = &params.ReviewedBy
	s.notifications = append(s.notifications, params.Notifications...)
	return nil
}

func (s *requestStoreStub) ApproveSwap(ctx context.Context, params repository.ApproveSwapParams) error {
	req, ok := s.requests[params.RequestID]
	if !ok || !req.Status.Reviewable() {
		return sql.ErrNoRows
	}
	if params.ClaimCounterpart {
		if req.CounterpartStudentID != nil {
			return sql.ErrNoRows
		}
		counterpart := params.CounterpartID
		req.CounterpartStudentID = &counterpart
	}
	a := s.students.records[params.StudentID]
	b := s.students.records[params.CounterpartID]
	a.TutorialGroupID, b.TutorialGroupID = b.TutorialGroupID, a.TutorialGroupID
	a.LabGroupID, b.LabGroupID = b.LabGroupID, a.LabGroupID
	if params.IncludeSection {
		a.SectionID, b.SectionID = b.SectionID, a.SectionID
	}
	req.Status = models.RequestStatusApproved
	req.ReviewedBy = &params.ReviewedBy
	s.notifications = append(s.notifications, params.Notifications...)
	return nil
}

func (s *requestStoreStub) Reject(ctx context.Context, params repository.RejectParams) error {
	req, ok := s.requests[params.RequestID]
	if !ok || !req.Status.Reviewable() {
		return sql.ErrNoRows
	}
	req.Status = models.RequestStatusRejected
	req.ReviewedBy = &params.ReviewedBy
	req.ReviewComment = params.Comment
	s.notifications = append(s.notifications, params.Notifications...)
	return nil
}

func (s *requestStoreStub) Appeal(ctx context.Context, params repository.AppealParams) error {
	req, ok := s.requests[params.RequestID]
	if !ok || req.Status != models.RequestStatusRejected {
		return sql.ErrNoRows
	}
	req.Status = models.RequestStatusAppealed
	req.Reason = params.Reason
	s.notifications = append(s.notifications, params.Notifications...)
	return nil
}

func (s *requestStoreStub) Cancel(ctx context.Context, params repository.CancelParams) error {
	req, ok := s.requests[params.RequestID]
	if !ok || req.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	delete(s.requests, params.RequestID)
	s.notifications = append(s.notifications, params.Notifications...)
	return nil
}

type studentDirStub struct {
	records map[string]*models.Student
}

func (s *studentDirStub) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s.records[id]; ok {
		copy := *st
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentDirStub) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, st := range s.records {
		if st.UserID == userID {
			copy := *st
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

type academicDirStub struct {
	groups   map[string]*models.Group
	sections map[string]*models.Section
}

func (a *academicDirStub) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	if g, ok := a.groups[id]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

func (a *academicDirStub) GetSection(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := a.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type teacherDirStub struct {
	byGroup   map[string][]string
	bySection map[string][]string
}

func (t *teacherDirStub) ListUserIDsByGroup(ctx context.Context, groupID string) ([]string, error) {
	return t.byGroup[groupID], nil
}

func (t *teacherDirStub) ListUserIDsBySection(ctx context.Context, sectionID string) ([]string, error) {
	return t.bySection[sectionID], nil
}

type staffDirStub struct {
	userIDs []string
}

func (s *staffDirStub) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.userIDs, nil
}

type workflowFixture struct {
	svc      *RequestService
	store    *requestStoreStub
	students *studentDirStub
}

// newWorkflowFixture builds one speciality with two sections; section A holds
// tutorial groups td1/td2 and lab group lab1, and students alice and bob are
// both enrolled in section A.
func newWorkflowFixture() *workflowFixture {
	students := &studentDirStub{records: map[string]*models.Student{
		"alice": {
			ID: "alice", UserID: "user-alice", FirstName: "Alice", LastName: "Arnaud",
			SpecialityID: "spec-1", SectionID: "sec-a", TutorialGroupID: "td1", LabGroupID: "lab1",
		},
		"bob": {
			ID: "bob", UserID: "user-bob", FirstName: "Bob", LastName: "Benali",
			SpecialityID: "spec-1", SectionID: "sec-a", TutorialGroupID: "td2", LabGroupID: "lab1",
		},
		"carol": {
			ID: "carol", UserID: "user-carol", FirstName: "Carol", LastName: "Cherif",
			SpecialityID: "spec-2", SectionID: "sec-x", TutorialGroupID: "td9", LabGroupID: "lab9",
		},
	}}
	academic := &academicDirStub{
		groups: map[string]*models.Group{
			"td1":  {ID: "td1", SectionID: "sec-a", Name: "TD1", Type: models.GroupTypeTutorial},
			"td2":  {ID: "td2", SectionID: "sec-a", Name: "TD2", Type: models.GroupTypeTutorial},
			"lab1": {ID: "lab1", SectionID: "sec-a", Name: "LAB1", Type: models.GroupTypeLab},
			"td9":  {ID: "td9", SectionID: "sec-x", Name: "TD9", Type: models.GroupTypeTutorial},
		},
		sections: map[string]*models.Section{
			"sec-a": {ID: "sec-a", SpecialityID: "spec-1", Name: "A"},
			"sec-b": {ID: "sec-b", SpecialityID: "spec-1", Name: "B"},
			"sec-x": {ID: "sec-x", SpecialityID: "spec-2", Name: "X"},
		},
	}
	teachers := &teacherDirStub{
		byGroup:   map[string][]string{"td2": {"user-teach-1"}},
		bySection: map[string][]string{"sec-b": {"user-teach-2", "user-teach-3"}},
	}
	staff := &staffDirStub{userIDs: []string{"user-staff-1", "user-staff-2"}}
	store := newRequestStoreStub(students)
	svc := NewRequestService(store, students, academic, teachers, staff, nil, nil)
	return &workflowFixture{svc: svc, store: store, students: students}
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-staff-1", Role: models.RoleStaff, PermissionLevel: models.PermissionStaff}
}

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent, PermissionLevel: models.PermissionStudent}
}

func TestSubmitChangeGroup(t *testing.T) {
	f := newWorkflowFixture()

	request, err := f.svc.SubmitChange(context.Background(), dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "schedule clash", Urgency: 2,
	}, studentClaims("user-alice"))
	require.NoError(t, err)
	assert.Equal(t, models.KindChangeGroup, request.Kind)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	require.NotNil(t, request.CurrentID)
	assert.Equal(t, "td1", *request.CurrentID)
}

func TestSubmitChangeValidatesPayload(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 5,
	}, studentClaims("user-alice"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: "teacher", RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Urgency: 1,
	}, studentClaims("user-alice"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.Empty(t, f.store.requests)
}

func TestSubmitChangeBindsActorIdentity(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	payload := dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}

	_, err := f.svc.SubmitChange(ctx, payload, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// A payload naming another student is refused outright.
	_, err = f.svc.SubmitChange(ctx, payload, studentClaims("user-bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// A caller without a student profile cannot submit at all.
	_, err = f.svc.SubmitChange(ctx, payload, staffClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	assert.Empty(t, f.store.requests)
}

func TestSubmitChangeRejectsCurrentPlacement(t *testing.T) {
	f := newWorkflowFixture()

	_, err := f.svc.SubmitChange(context.Background(), dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td1", Reason: "why not", Urgency: 1,
	}, studentClaims("user-alice"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitChangeRejectsForeignGroup(t *testing.T) {
	f := newWorkflowFixture()

	_, err := f.svc.SubmitChange(context.Background(), dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td9", Reason: "transfer", Urgency: 1,
	}, studentClaims("user-alice"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitChangeDuplicateActive(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()
	alice := studentClaims("user-alice")

	_, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "first", Urgency: 1,
	}, alice)
	require.NoError(t, err)

	_, err = f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "second", Urgency: 1,
	}, alice)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// A section change is a different logical type and may coexist.
	_, err = f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeSection, RequestedID: "sec-b", Reason: "move", Urgency: 1,
	}, alice)
	require.NoError(t, err)
}

func TestApproveChangeMovesSingleSlot(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "schedule clash", Urgency: 2,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	reviewed, err := f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, reviewed.Status)

	alice := f.students.records["alice"]
	assert.Equal(t, "td2", alice.TutorialGroupID)
	assert.Equal(t, "lab1", alice.LabGroupID)
	assert.Equal(t, "sec-a", alice.SectionID)

	// Student success notice plus the td2 teacher.
	require.Len(t, f.store.notifications, 2)
	assert.Equal(t, "user-alice", f.store.notifications[0].UserID)
	assert.Equal(t, models.NotificationSuccess, f.store.notifications[0].Type)
	assert.Equal(t, "user-teach-1", f.store.notifications[1].UserID)
}

func TestApproveSectionChangeNotifiesSectionTeachers(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeSection, RequestedID: "sec-b", Reason: "closer campus", Urgency: 3,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)

	assert.Equal(t, "sec-b", f.students.records["alice"].SectionID)
	require.Len(t, f.store.notifications, 3)
}

func TestReviewTwiceFails(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRejectRequiresComment(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionReject}, staffClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// A blank comment is no comment.
	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionReject, Comment: "   "}, staffClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// The request stays reviewable and the rejection lands with its comment.
	rejected, err := f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionReject, Comment: "no seats left"}, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, rejected.Status)
	stored := f.store.requests[request.ID]
	require.NotNil(t, stored.ReviewComment)
	assert.Equal(t, "no seats left", *stored.ReviewComment)
}

func TestRejectThenAppealThenApprove(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()
	alice := studentClaims("user-alice")

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, alice)
	require.NoError(t, err)

	rejected, err := f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionReject, Comment: "no room"}, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, rejected.Status)
	require.Len(t, f.store.notifications, 1)
	assert.Equal(t, models.NotificationWarning, f.store.notifications[0].Type)

	appealed, err := f.svc.Appeal(ctx, dto.AppealRequest{RequestID: request.ID, StudentID: "alice", Reason: "medical grounds"}, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAppealed, appealed.Status)
	assert.Equal(t, "medical grounds", appealed.Reason)
	// Both staff members were alerted.
	require.Len(t, f.store.notifications, 3)

	approved, err := f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, approved.Status)
	assert.Equal(t, "td2", f.students.records["alice"].TutorialGroupID)
}

func TestAppealRequiresRejectedState(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.Appeal(ctx, dto.AppealRequest{RequestID: request.ID, StudentID: "alice", Reason: "try again"}, studentClaims("user-alice"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Appeal(ctx, dto.AppealRequest{RequestID: request.ID, StudentID: "bob", Reason: "not mine"}, studentClaims("user-bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAppealBindsActorIdentity(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionReject, Comment: "no room"}, staffClaims())
	require.NoError(t, err)

	// bob naming alice in the payload does not become alice.
	_, err = f.svc.Appeal(ctx, dto.AppealRequest{RequestID: request.ID, StudentID: "alice", Reason: "hijack"}, studentClaims("user-bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.RequestStatusRejected, f.store.requests[request.ID].Status)

	_, err = f.svc.Appeal(ctx, dto.AppealRequest{RequestID: request.ID, StudentID: "alice", Reason: "medical grounds"}, studentClaims("user-alice"))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAppealed, f.store.requests[request.ID].Status)
}

func TestSubmitSwapEligibility(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()
	alice := studentClaims("user-alice")

	counterpart := "carol"
	_, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, CounterpartStudentID: &counterpart, Reason: "swap", Urgency: 1,
	}, alice)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	self := "alice"
	_, err = f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, CounterpartStudentID: &self, Reason: "swap", Urgency: 1,
	}, alice)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.VerifySwapEligibility(ctx, "alice", "bob"))
}

func TestApproveSwapExchangesGroups(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	counterpart := "bob"
	request, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, CounterpartStudentID: &counterpart, Reason: "swap", Urgency: 2,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)

	assert.Equal(t, "td2", f.students.records["alice"].TutorialGroupID)
	assert.Equal(t, "td1", f.students.records["bob"].TutorialGroupID)
	assert.Equal(t, "sec-a", f.students.records["alice"].SectionID)

	// Both students were told the swap completed.
	require.Len(t, f.store.notifications, 2)
	assert.Equal(t, models.NotificationSuccess, f.store.notifications[0].Type)
	assert.Equal(t, models.NotificationSuccess, f.store.notifications[1].Type)
}

func TestDoubleSwapRestoresPlacements(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	counterpart := "bob"
	first, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, CounterpartStudentID: &counterpart, Reason: "swap", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: first.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, "td2", f.students.records["alice"].TutorialGroupID)

	// The approved swap no longer counts as active, so the pair can swap back.
	second, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, CounterpartStudentID: &counterpart, Reason: "changed my mind", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: second.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)

	alice := f.students.records["alice"]
	bob := f.students.records["bob"]
	assert.Equal(t, "td1", alice.TutorialGroupID)
	assert.Equal(t, "lab1", alice.LabGroupID)
	assert.Equal(t, "sec-a", alice.SectionID)
	assert.Equal(t, "td2", bob.TutorialGroupID)
	assert.Equal(t, "lab1", bob.LabGroupID)
	assert.Equal(t, "sec-a", bob.SectionID)
}

func TestApproveSwapWithoutCounterpartFails(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, Reason: "anyone?", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRespondToSwapAccept(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	counterpart := "bob"
	request, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, CounterpartStudentID: &counterpart, Reason: "swap", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	answered, err := f.svc.RespondToSwap(ctx, dto.RespondSwapRequest{
		RequestID: request.ID, RespondingStudentID: "bob", Response: dto.SwapAccept,
	}, studentClaims("user-bob"))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, answered.Status)
	assert.Equal(t, "td2", f.students.records["alice"].TutorialGroupID)
	assert.Equal(t, "td1", f.students.records["bob"].TutorialGroupID)
}

func TestRespondToSwapGuards(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	counterpart := "bob"
	request, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, CounterpartStudentID: &counterpart, Reason: "swap", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.RespondToSwap(ctx, dto.RespondSwapRequest{
		RequestID: request.ID, RespondingStudentID: "alice", Response: dto.SwapAccept,
	}, studentClaims("user-alice"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.RespondToSwap(ctx, dto.RespondSwapRequest{
		RequestID: request.ID, RespondingStudentID: "carol", Response: dto.SwapAccept,
	}, studentClaims("user-carol"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// carol cannot pose as bob either.
	_, err = f.svc.RespondToSwap(ctx, dto.RespondSwapRequest{
		RequestID: request.ID, RespondingStudentID: "bob", Response: dto.SwapAccept,
	}, studentClaims("user-carol"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestClaimOpenOpportunity(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, Reason: "anyone?", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	// Open opportunities cannot be declined, only claimed.
	_, err = f.svc.RespondToSwap(ctx, dto.RespondSwapRequest{
		RequestID: request.ID, RespondingStudentID: "bob", Response: dto.SwapReject, Opportunity: true,
	}, studentClaims("user-bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	answered, err := f.svc.RespondToSwap(ctx, dto.RespondSwapRequest{
		RequestID: request.ID, RespondingStudentID: "bob", Response: dto.SwapAccept, Opportunity: true,
	}, studentClaims("user-bob"))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, answered.Status)
	require.NotNil(t, answered.CounterpartStudentID)
	assert.Equal(t, "bob", *answered.CounterpartStudentID)
	assert.Equal(t, "td2", f.students.records["alice"].TutorialGroupID)
}

func TestSectionSwapExchangesSectionAndGroups(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	// Move bob to section B first so the section swap is observable.
	bob := f.students.records["bob"]
	bob.SectionID = "sec-b"
	bob.TutorialGroupID = "td-b1"
	bob.LabGroupID = "lab-b1"

	counterpart := "bob"
	request, err := f.svc.SubmitSwap(ctx, dto.CreateSwapRequest{
		StudentID: "alice", Type: models.RequestTypeSection, CounterpartStudentID: &counterpart, Reason: "campus", Urgency: 2,
	}, studentClaims("user-alice"))
	require.NoError(t, err)
	assert.Equal(t, models.KindSwapSection, request.Kind)

	_, err = f.svc.Review(ctx, dto.ReviewRequest{RequestID: request.ID, Decision: dto.DecisionApprove}, staffClaims())
	require.NoError(t, err)

	alice := f.students.records["alice"]
	assert.Equal(t, "sec-b", alice.SectionID)
	assert.Equal(t, "td-b1", alice.TutorialGroupID)
	assert.Equal(t, "lab-b1", alice.LabGroupID)
	assert.Equal(t, "sec-a", bob.SectionID)
	assert.Equal(t, "td1", bob.TutorialGroupID)
	assert.Equal(t, "lab1", bob.LabGroupID)
}

func TestCancelRequest(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	err = f.svc.Cancel(ctx, dto.CancelRequest{RequestID: request.ID, StudentID: "bob"}, studentClaims("user-bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Cancel(ctx, dto.CancelRequest{RequestID: request.ID, StudentID: "alice"}, studentClaims("user-alice")))
	_, err = f.store.GetByID(ctx, request.ID)
	require.Error(t, err)
	require.Len(t, f.store.notifications, 1)
	assert.Equal(t, models.NotificationInfo, f.store.notifications[0].Type)
}

func TestCancelBindsActorIdentity(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	// Naming the owner in the payload does not let another student cancel.
	err = f.svc.Cancel(ctx, dto.CancelRequest{RequestID: request.ID, StudentID: "alice"}, studentClaims("user-bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = f.svc.Cancel(ctx, dto.CancelRequest{RequestID: request.ID, StudentID: "alice"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// The request survives both attempts.
	_, err = f.store.GetByID(ctx, request.ID)
	require.NoError(t, err)
}

func TestListScopesStudentsToOwnRequests(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)
	_, err = f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "bob", Type: models.RequestTypeGroup, RequestedID: "td1", Reason: "clash", Urgency: 1,
	}, studentClaims("user-bob"))
	require.NoError(t, err)

	rows, total, err := f.svc.List(ctx, models.RequestFilter{}, studentClaims("user-bob"))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0].StudentID)

	rows, total, err = f.svc.List(ctx, models.RequestFilter{}, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	request, err := f.svc.SubmitChange(ctx, dto.CreateChangeRequest{
		StudentID: "alice", Type: models.RequestTypeGroup, RequestedID: "td2", Reason: "clash", Urgency: 1,
	}, studentClaims("user-alice"))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, request.ID, studentClaims("user-bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	detail, err := f.svc.Get(ctx, request.ID, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, "alice", detail.Student.ID)
	assert.Equal(t, "td1", detail.Enrollment.TutorialGroupID)
}
