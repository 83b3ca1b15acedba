package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/skillmentorx-api/internal/models"
)

var (
	// ErrActiveRequestExists is returned by exclusive creates when the student already has an open request.
	ErrActiveRequestExists = errors.New("student already has an active request")
	// ErrReplyRejected is returned when the request changed mentor or was resolved between read and append.
	ErrReplyRejected = errors.New("reply rejected by current request state")
	// ErrStaleRequest is returned when a guarded write finds the row no longer in the state it was read in.
	ErrStaleRequest = errors.New("request changed since it was read")
)

const requestColumns = `id, student_id, category, stack, status, assigned_mentor_id, notes, requested_at, updated_at`

const requestDetailSelect = `SELECT r.id, r.student_id, r.category, r.stack, r.status, r.assigned_mentor_id, r.notes, r.requested_at, r.updated_at,
	TRIM(s.first_name || ' ' || s.last_name) AS student_name, s.email AS student_email,
	COALESCE(mp.full_name, TRIM(mu.first_name || ' ' || mu.last_name), '') AS mentor_name,
	COALESCE(mu.email, '') AS mentor_email,
	COALESCE(mp.expertise, '{}') AS mentor_expertise
FROM requests r
JOIN users s ON s.id = r.student_id
LEFT JOIN users mu ON mu.id = r.assigned_mentor_id
LEFT JOIN mentor_profiles mp ON mp.user_id = r.assigned_mentor_id`

type requestDetailRow struct {
	models.Request
	StudentName     string         `db:"student_name"`
	StudentEmail    string         `db:"student_email"`
	MentorName      string         `db:"mentor_name"`
	MentorEmail     string         `db:"mentor_email"`
	MentorExpertise pq.StringArray `db:"mentor_expertise"`
}

func (row requestDetailRow) detail() models.RequestDetail {
	d := models.RequestDetail{
		Request: row.Request,
		Student: &models.UserSummary{ID: row.StudentID, Name: row.StudentName, Email: row.StudentEmail},
	}
	if row.AssignedMentorID != nil {
		expertise := []string(row.MentorExpertise)
		if expertise == nil {
			expertise = []string{}
		}
		d.Mentor = &models.MentorSummary{
			ID:        *row.AssignedMentorID,
			Name:      row.MentorName,
			Email:     row.MentorEmail,
			Expertise: expertise,
		}
	}
	return d
}

type replyRow struct {
	RequestID string `db:"request_id"`
	models.Reply
}

// RequestRepository persists mentorship requests and their reply threads.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a request. When exclusive is set the insert is serialised per
// student and refused with ErrActiveRequestExists if a pending or accepted request exists.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request, exclusive bool) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.RequestedAt.IsZero() {
		req.RequestedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.RequestedAt
	}
	if req.Replies == nil {
		req.Replies = []models.Reply{}
	}

	const insert = `INSERT INTO requests (id, student_id, category, stack, status, assigned_mentor_id, notes, requested_at, updated_at) VALUES (:id, :student_id, :category, :stack, :status, :assigned_mentor_id, :notes, :requested_at, :updated_at)`

	if !exclusive {
		if _, err := r.db.NamedExecContext(ctx, insert, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.StudentID); err != nil {
		return fmt.Errorf("lock student requests: %w", err)
	}
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM requests WHERE student_id = $1 AND status IN ('pending', 'accepted'))`, req.StudentID); err != nil {
		return fmt.Errorf("check active requests: %w", err)
	}
	if exists {
		return ErrActiveRequestExists
	}
	if _, err := tx.NamedExecContext(ctx, insert, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	return nil
}

// FindByID returns a request with its replies in posting order.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1 LIMIT 1`
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	replies, err := r.loadReplies(ctx, []string{req.ID})
	if err != nil {
		return nil, err
	}
	req.Replies = replies[req.ID]
	if req.Replies == nil {
		req.Replies = []models.Reply{}
	}
	return &req, nil
}

// ListByStudent returns the student's requests, newest first.
func (r *RequestRepository) ListByStudent(ctx context.Context, studentID string) ([]models.RequestDetail, error) {
	return r.listDetails(ctx, requestDetailSelect+` WHERE r.student_id = $1 ORDER BY r.requested_at DESC, r.id`, studentID)
}

// ListByMentor returns requests currently assigned to mentorID, newest first.
func (r *RequestRepository) ListByMentor(ctx context.Context, mentorID string) ([]models.RequestDetail, error) {
	return r.listDetails(ctx, requestDetailSelect+` WHERE r.assigned_mentor_id = $1 ORDER BY r.requested_at DESC, r.id`, mentorID)
}

// ListAll returns every request, optionally filtered by status, newest first.
func (r *RequestRepository) ListAll(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, error) {
	if filter.Status != nil {
		return r.listDetails(ctx, requestDetailSelect+` WHERE r.status = $1 ORDER BY r.requested_at DESC, r.id`, *filter.Status)
	}
	return r.listDetails(ctx, requestDetailSelect+` ORDER BY r.requested_at DESC, r.id`)
}

// Update writes the mutable fields of req, but only while the stored status and
// mentor still match prev. Otherwise the row is left untouched and ErrStaleRequest is returned.
func (r *RequestRepository) Update(ctx context.Context, req *models.Request, prev models.Request) error {
	const query = `UPDATE requests SET status = $2, assigned_mentor_id = $3, notes = $4, updated_at = $5
WHERE id = $1 AND status = $6 AND assigned_mentor_id IS NOT DISTINCT FROM $7`
	res, err := r.db.ExecContext(ctx, query,
		req.ID, req.Status, req.AssignedMentorID, req.Notes, req.UpdatedAt,
		prev.Status, prev.AssignedMentorID,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return expectOneRow(res, "update request")
}

// MarkResolved resolves the request if mentorID is still the assigned mentor and it is not resolved yet.
func (r *RequestRepository) MarkResolved(ctx context.Context, id, mentorID string, at time.Time) error {
	const query = `UPDATE requests SET status = 'resolved', updated_at = $3
WHERE id = $1 AND assigned_mentor_id = $2 AND status <> 'resolved'`
	res, err := r.db.ExecContext(ctx, query, id, mentorID, at)
	if err != nil {
		return fmt.Errorf("resolve request: %w", err)
	}
	return expectOneRow(res, "resolve request")
}

func expectOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return ErrStaleRequest
	}
	return nil
}

// AppendReply inserts reply and bumps updated_at in one transaction. The insert
// only happens while reply.AuthorMentorID is still assigned and the request is open.
func (r *RequestRepository) AppendReply(ctx context.Context, requestID string, reply models.Reply) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append reply: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO request_replies (request_id, author_mentor_id, text, posted_at)
SELECT $1, $2, $3, $4 WHERE EXISTS (SELECT 1 FROM requests WHERE id = $1 AND assigned_mentor_id = $2 AND status <> 'resolved')`
	res, err := tx.ExecContext(ctx, insert, requestID, reply.AuthorMentorID, reply.Text, reply.PostedAt)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	if affected == 0 {
		return ErrReplyRejected
	}
	if _, err := tx.ExecContext(ctx, `UPDATE requests SET updated_at = $2 WHERE id = $1`, requestID, reply.PostedAt); err != nil {
		return fmt.Errorf("touch request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append reply: %w", err)
	}
	return nil
}

// CountByStatus aggregates request totals per status.
func (r *RequestRepository) CountByStatus(ctx context.Context) (models.RequestStats, error) {
	var rows []struct {
		Status models.RequestStatus `db:"status"`
		Count  int                  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM requests GROUP BY status`); err != nil {
		return models.RequestStats{}, fmt.Errorf("count requests: %w", err)
	}
	var stats models.RequestStats
	for _, row := range rows {
		switch row.Status {
		case models.RequestStatusPending:
			stats.Pending = row.Count
		case models.RequestStatusAccepted:
			stats.Accepted = row.Count
		case models.RequestStatusResolved:
			stats.Resolved = row.Count
		}
		stats.Total += row.Count
	}
	return stats, nil
}

func (r *RequestRepository) listDetails(ctx context.Context, query string, args ...interface{}) ([]models.RequestDetail, error) {
	var rows []requestDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	details := make([]models.RequestDetail, 0, len(rows))
	if len(rows) == 0 {
		return details, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	replies, err := r.loadReplies(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		d := row.detail()
		d.Replies = replies[row.ID]
		if d.Replies == nil {
			d.Replies = []models.Reply{}
		}
		details = append(details, d)
	}
	return details, nil
}

func (r *RequestRepository) loadReplies(ctx context.Context, requestIDs []string) (map[string][]models.Reply, error) {
	const query = `SELECT request_id, author_mentor_id, text, posted_at FROM request_replies WHERE request_id = ANY($1) ORDER BY seq ASC`
	var rows []replyRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(requestIDs)); err != nil {
		return nil, fmt.Errorf("load replies: %w", err)
	}
	out := make(map[string][]models.Reply, len(requestIDs))
	for _, row := range rows {
		out[row.RequestID] = append(out[row.RequestID], row.Reply)
	}
	return out, nil
}
