package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/usra-dev/usra-api/internal/models"
)

const requestColumns = `id, student_id, kind, status, reason, urgency, current_id, requested_id,
       counterpart_student_id, review_comment, reviewed_by, reviewed_at, created_at, updated_at`

// RequestRepository persists workflow requests and applies their enrollment
// consequences. Every multi-row mutation runs in a single transaction with a
// status-guarded update on the request row, so concurrent reviews serialize
// and at most one wins.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO requests
	(id, student_id, kind, status, reason, urgency, current_id, requested_id, counterpart_student_id,
	 review_comment, reviewed_by, reviewed_at, created_at, updated_at)
	VALUES (:id, :student_id, :kind, :status, :reason, :urgency, :current_id, :requested_id, :counterpart_student_id,
	 :review_comment, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// HasActive reports whether the student already has a PENDING or APPEALED
// request of the given logical type.
func (r *RequestRepository) HasActive(ctx context.Context, studentID string, reqType models.RequestType) (bool, error) {
	args := []interface{}{studentID}
	clause := kindClause(&args, reqType)
	query := `SELECT COUNT(1) FROM requests
	WHERE student_id = $1 AND status IN ('PENDING', 'APPEALED') AND ` + clause
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("count active requests: %w", err)
	}
	return count > 0, nil
}

// kindClause appends the kinds for the logical type to args and returns an
// IN clause over them.
func kindClause(args *[]interface{}, t models.RequestType) string {
	kinds := kindsForType(t)
	placeholders := make([]string, len(kinds))
	for i, kind := range kinds {
		*args = append(*args, kind)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ","))
}

func kindsForType(t models.RequestType) []string {
	switch t {
	case models.RequestTypeGroup:
		return []string{string(models.KindChangeGroup)}
	case models.RequestTypeSection:
		return []string{string(models.KindChangeSection)}
	default:
		return []string{string(models.KindSwapGroup), string(models.KindSwapSection)}
	}
}

// List returns requests matching the filter joined with the student's name,
// newest first, along with the unpaginated total.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRow, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	if filter.Search != "" {
		if _, err := uuid.Parse(filter.Search); err == nil {
			args = append(args, filter.Search)
			conditions = append(conditions, fmt.Sprintf("r.id = $%d", len(args)))
		} else {
			args = append(args, "%"+filter.Search+"%")
			conditions = append(conditions, fmt.Sprintf("s.last_name ILIKE $%d", len(args)))
		}
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.Type != "" {
		conditions = append(conditions, "r."+kindClause(&args, filter.Type))
	}
	if filter.Urgency > 0 {
		args = append(args, filter.Urgency)
		conditions = append(conditions, fmt.Sprintf("r.urgency = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("r.created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("r.created_at <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := `SELECT COUNT(1) FROM requests r JOIN students s ON s.id = r.student_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := `SELECT r.id, r.student_id, r.kind, r.status, r.reason, r.urgency, r.current_id, r.requested_id,
       r.counterpart_student_id, r.review_comment, r.reviewed_by, r.reviewed_at, r.created_at, r.updated_at,
       s.first_name AS student_first_name, s.last_name AS student_last_name
	FROM requests r JOIN students s ON s.id = r.student_id` + where +
		fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var rows []models.RequestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return rows, total, nil
}

// ListSwaps returns the normalized swap feed. The current group/section is
// resolved from the requesting student's own enrollment, so both swap
// variants project into one row shape without a union.
func (r *RequestRepository) ListSwaps(ctx context.Context, filter models.SwapFilter) ([]models.SwapRow, int, error) {
	conditions := []string{"r.kind IN ('SWAP_GROUP', 'SWAP_SECTION')"}
	args := make([]interface{}, 0, 8)

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(s.first_name ILIKE $%d OR s.last_name ILIKE $%d)", len(args), len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.Urgency > 0 {
		args = append(args, filter.Urgency)
		conditions = append(conditions, fmt.Sprintf("r.urgency = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("r.created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("r.created_at <= $%d", len(args)))
	}
	if filter.OpportunityOnly {
		conditions = append(conditions, "r.counterpart_student_id IS NULL")
	}

	where := " WHERE " + strings.Join(conditions, " AND ")
	const from = ` FROM requests r
	JOIN students s ON s.id = r.student_id
	LEFT JOIN groups g ON r.kind = 'SWAP_GROUP' AND g.id = s.tutorial_group_id
	LEFT JOIN sections sec ON r.kind = 'SWAP_SECTION' AND sec.id = s.section_id`

	countQuery := `SELECT COUNT(1)` + from + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count swap requests: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := `SELECT r.id AS request_id, r.kind, r.student_id,
       s.first_name AS student_first_name, s.last_name AS student_last_name,
       r.status, r.urgency,
       g.id AS current_group_id, g.name AS current_group_name,
       sec.id AS current_section_id, sec.name AS current_section_name,
       r.counterpart_student_id, r.created_at, r.updated_at` + from + where +
		fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var rows []models.SwapRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list swap requests: %w", err)
	}
	return rows, total, nil
}

// ApproveChangeParams carries everything the change-approval transaction
// writes: the guarded request update, the single enrollment column move and
// the notification fan-out.
type ApproveChangeParams struct {
	RequestID     string
	StudentID     string
	Column        string // one of tutorial_group_id, lab_group_id, section_id
	TargetID      string
	ReviewedBy    string
	Comment       *string
	Notifications []models.Notification
}

var enrollmentColumns = map[string]struct{}{
	"tutorial_group_id": {},
	"lab_group_id":      {},
	"section_id":        {},
}

// ApproveChange atomically marks the request approved, moves the student's
// enrollment column and writes the notifications. Returns sql.ErrNoRows when
// the request is no longer reviewable.
func (r *RequestRepository) ApproveChange(ctx context.Context, params ApproveChangeParams) error {
	if _, ok := enrollmentColumns[params.Column]; !ok {
		return fmt.Errorf("approve change: unknown enrollment column %q", params.Column)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve change: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := markReviewed(ctx, tx, params.RequestID, models.RequestStatusApproved, params.ReviewedBy, params.Comment); err != nil {
		return err
	}

	update := fmt.Sprintf("UPDATE students SET %s = $1, updated_at = $2 WHERE id = $3", params.Column)
	if _, err := tx.ExecContext(ctx, update, params.TargetID, time.Now().UTC(), params.StudentID); err != nil {
		return fmt.Errorf("move student enrollment: %w", err)
	}

	if err := insertNotificationsTx(ctx, tx, params.Notifications); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve change: %w", err)
	}
	return nil
}

// ApproveSwapParams carries the dual-student exchange transaction inputs.
type ApproveSwapParams struct {
	RequestID        string
	StudentID        string
	CounterpartID    string
	IncludeSection   bool // section swaps also exchange both group slots
	ClaimCounterpart bool // open opportunity being claimed by the responder
	ReviewedBy       string
	Comment          *string
	Notifications    []models.Notification
}

type swapSlots struct {
	ID              string `db:"id"`
	SectionID       string `db:"section_id"`
	TutorialGroupID string `db:"tutorial_group_id"`
	LabGroupID      string `db:"lab_group_id"`
}

// ApproveSwap atomically marks the request approved and exchanges the two
// students' enrollment slots. Both student rows are locked before the
// exchange so concurrent swaps cannot interleave.
func (r *RequestRepository) ApproveSwap(ctx context.Context, params ApproveSwapParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve swap: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if params.ClaimCounterpart {
		// Claiming is only valid while the opportunity is still open.
		res, err := tx.ExecContext(ctx,
			`UPDATE requests SET counterpart_student_id = $1, updated_at = $2
			 WHERE id = $3 AND counterpart_student_id IS NULL`,
			params.CounterpartID, time.Now().UTC(), params.RequestID)
		if err != nil {
			return fmt.Errorf("claim swap opportunity: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("check claim rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
	}

	if err := markReviewed(ctx, tx, params.RequestID, models.RequestStatusApproved, params.ReviewedBy, params.Comment); err != nil {
		return err
	}

	var slots []swapSlots
	const lockQuery = `SELECT id, section_id, tutorial_group_id, lab_group_id
	FROM students WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &slots, lockQuery, params.StudentID, params.CounterpartID); err != nil {
		return fmt.Errorf("lock swap students: %w", err)
	}
	if len(slots) != 2 {
		return sql.ErrNoRows
	}

	a, b := slots[0], slots[1]
	now := time.Now().UTC()
	for _, pair := range []struct {
		target string
		source swapSlots
	}{{a.ID, b}, {b.ID, a}} {
		if params.IncludeSection {
			_, err = tx.ExecContext(ctx,
				`UPDATE students SET section_id = $1, tutorial_group_id = $2, lab_group_id = $3, updated_at = $4 WHERE id = $5`,
				pair.source.SectionID, pair.source.TutorialGroupID, pair.source.LabGroupID, now, pair.target)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE students SET tutorial_group_id = $1, lab_group_id = $2, updated_at = $3 WHERE id = $4`,
				pair.source.TutorialGroupID, pair.source.LabGroupID, now, pair.target)
		}
		if err != nil {
			return fmt.Errorf("exchange enrollment: %w", err)
		}
	}

	if err := insertNotificationsTx(ctx, tx, params.Notifications); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve swap: %w", err)
	}
	return nil
}

// RejectParams carries the rejection transaction inputs.
type RejectParams struct {
	RequestID     string
	ReviewedBy    string
	Comment       *string
	Notifications []models.Notification
}

// Reject atomically marks the request rejected and writes the notifications.
// No enrollment data changes.
func (r *RequestRepository) Reject(ctx context.Context, params RejectParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reject: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := markReviewed(ctx, tx, params.RequestID, models.RequestStatusRejected, params.ReviewedBy, params.Comment); err != nil {
		return err
	}
	if err := insertNotificationsTx(ctx, tx, params.Notifications); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reject: %w", err)
	}
	return nil
}

// AppealParams carries the appeal transaction inputs.
type AppealParams struct {
	RequestID     string
	Reason        string
	Notifications []models.Notification
}

// Appeal transitions a rejected request to appealed with a fresh reason and
// notifies staff. Returns sql.ErrNoRows when the request was not rejected.
func (r *RequestRepository) Appeal(ctx context.Context, params AppealParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin appeal: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE requests SET status = 'APPEALED', reason = $1, updated_at = $2
		 WHERE id = $3 AND status = 'REJECTED'`,
		params.Reason, time.Now().UTC(), params.RequestID)
	if err != nil {
		return fmt.Errorf("appeal request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check appeal rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := insertNotificationsTx(ctx, tx, params.Notifications); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit appeal: %w", err)
	}
	return nil
}

// CancelParams carries the cancellation transaction inputs.
type CancelParams struct {
	RequestID     string
	Notifications []models.Notification
}

// Cancel deletes a pending request outright and notifies the student.
// Returns sql.ErrNoRows when the request was not pending.
func (r *RequestRepository) Cancel(ctx context.Context, params CancelParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM requests WHERE id = $1 AND status = 'PENDING'`, params.RequestID)
	if err != nil {
		return fmt.Errorf("cancel request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := insertNotificationsTx(ctx, tx, params.Notifications); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	return nil
}

// markReviewed applies the status-guarded review update inside tx. The guard
// on the reviewable states is what serializes concurrent reviews: the loser
// sees zero rows and gets sql.ErrNoRows.
func markReviewed(ctx context.Context, tx *sqlx.Tx, requestID string, status models.RequestStatus, reviewedBy string, comment *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE requests SET status = $1, review_comment = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4
		 WHERE id = $5 AND status IN ('PENDING', 'APPEALED')`,
		status, comment, reviewedBy, time.Now().UTC(), requestID)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check request status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// maxFeedRows bounds a single page; exports rely on it as their ceiling.
const maxFeedRows = 5000

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > maxFeedRows {
		pageSize = maxFeedRows
	}
	return page, pageSize
}
