package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/skillmentorx-api/internal/models"
)

const studentProfileSelect = `SELECT sp.id, sp.user_id, sp.full_name, u.email, sp.location, sp.phone, sp.avatar_url,
	sp.education_level, sp.selected_course, sp.selected_stack, sp.created_at, sp.updated_at
FROM student_profiles sp
JOIN users u ON u.id = sp.user_id`

// StudentRepository persists student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByUserID returns the profile owned by the student user.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, studentProfileSelect+` WHERE sp.user_id = $1 LIMIT 1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &profile, nil
}

// Create inserts a profile. A second profile for the same user yields ErrDuplicate.
func (r *StudentRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	const query = `INSERT INTO student_profiles (id, user_id, full_name, location, phone, avatar_url, education_level, selected_course, selected_stack, created_at, updated_at)
VALUES (:id, :user_id, :full_name, :location, :phone, :avatar_url, :education_level, :selected_course, :selected_stack, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student profile: %w", err)
	}
	return nil
}

// Update replaces the descriptive fields of the user's profile. A missing row yields sql.ErrNoRows.
func (r *StudentRepository) Update(ctx context.Context, profile *models.StudentProfile) error {
	const query = `UPDATE student_profiles SET full_name = :full_name, location = :location, phone = :phone, avatar_url = :avatar_url,
	education_level = :education_level, selected_course = :selected_course, selected_stack = :selected_stack, updated_at = :updated_at
WHERE user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		return fmt.Errorf("update student profile: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RequestedStacks lists the distinct stacks the student has asked for help with, oldest first.
func (r *StudentRepository) RequestedStacks(ctx context.Context, studentID string) ([]string, error) {
	var stacks []string
	const query = `SELECT stack FROM requests WHERE student_id = $1 GROUP BY stack ORDER BY MIN(requested_at)`
	if err := r.db.SelectContext(ctx, &stacks, query, studentID); err != nil {
		return nil, fmt.Errorf("list requested stacks: %w", err)
	}
	return stacks, nil
}
