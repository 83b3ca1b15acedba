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

const mentorColumns = `id, user_id, full_name, email, headline, bio, current_position, company, years_of_experience, expertise, linkedin, github, portfolio, phone_number, documents, verification_status, created_at, updated_at`

// MentorRepository persists mentor profiles.
type MentorRepository struct {
	db *sqlx.DB
}

// NewMentorRepository constructs a MentorRepository.
func NewMentorRepository(db *sqlx.DB) *MentorRepository {
	return &MentorRepository{db: db}
}

// FindByUserID returns the profile owned by the mentor user.
func (r *MentorRepository) FindByUserID(ctx context.Context, userID string) (*models.MentorProfile, error) {
	return r.findOne(ctx, `SELECT `+mentorColumns+` FROM mentor_profiles WHERE user_id = $1 LIMIT 1`, userID)
}

// FindByID returns a profile by its own identifier.
func (r *MentorRepository) FindByID(ctx context.Context, id string) (*models.MentorProfile, error) {
	return r.findOne(ctx, `SELECT `+mentorColumns+` FROM mentor_profiles WHERE id = $1 LIMIT 1`, id)
}

// Upsert creates the profile or updates its descriptive fields. Verification
// status and documents are left untouched on update.
func (r *MentorRepository) Upsert(ctx context.Context, profile *models.MentorProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.VerificationStatus == "" {
		profile.VerificationStatus = models.VerificationPending
	}
	if profile.Documents == nil {
		profile.Documents = models.Documents{}
	}
	if profile.Expertise == nil {
		profile.Expertise = pq.StringArray{}
	}

	query := `INSERT INTO mentor_profiles (` + mentorColumns + `)
VALUES (:id, :user_id, :full_name, :email, :headline, :bio, :current_position, :company, :years_of_experience, :expertise, :linkedin, :github, :portfolio, :phone_number, :documents, :verification_status, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET
	full_name = EXCLUDED.full_name,
	email = EXCLUDED.email,
	headline = EXCLUDED.headline,
	bio = EXCLUDED.bio,
	current_position = EXCLUDED.current_position,
	company = EXCLUDED.company,
	years_of_experience = EXCLUDED.years_of_experience,
	expertise = EXCLUDED.expertise,
	linkedin = EXCLUDED.linkedin,
	github = EXCLUDED.github,
	portfolio = EXCLUDED.portfolio,
	phone_number = EXCLUDED.phone_number,
	updated_at = EXCLUDED.updated_at
RETURNING ` + mentorColumns

	rows, err := r.db.NamedQueryContext(ctx, query, profile)
	if err != nil {
		return fmt.Errorf("upsert mentor profile: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("upsert mentor profile: %w", err)
		}
		return fmt.Errorf("upsert mentor profile: no row returned")
	}
	if err := rows.StructScan(profile); err != nil {
		return fmt.Errorf("scan mentor profile: %w", err)
	}
	return nil
}

// UpdateDocuments replaces the stored document map for the mentor user.
func (r *MentorRepository) UpdateDocuments(ctx context.Context, userID string, docs models.Documents) error {
	const query = `UPDATE mentor_profiles SET documents = $2, updated_at = $3 WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, docs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update mentor documents: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateVerification sets the review status of a profile.
func (r *MentorRepository) UpdateVerification(ctx context.Context, id string, status models.VerificationStatus) error {
	const query = `UPDATE mentor_profiles SET verification_status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update mentor verification: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns profiles, optionally filtered by verification status, newest first.
func (r *MentorRepository) List(ctx context.Context, filter models.MentorFilter) ([]models.MentorProfile, error) {
	query := `SELECT ` + mentorColumns + ` FROM mentor_profiles`
	var args []interface{}
	if filter.Status != nil {
		query += ` WHERE verification_status = $1`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	profiles := []models.MentorProfile{}
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("list mentor profiles: %w", err)
	}
	return profiles, nil
}

// CountByStatus aggregates profiles per verification status.
func (r *MentorRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"verification_status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT verification_status, COUNT(*) AS count FROM mentor_profiles GROUP BY verification_status`); err != nil {
		return nil, fmt.Errorf("count mentor profiles: %w", err)
	}
	out := map[string]int{
		string(models.VerificationPending):  0,
		string(models.VerificationApproved): 0,
		string(models.VerificationRejected): 0,
	}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *MentorRepository) findOne(ctx context.Context, query string, arg string) (*models.MentorProfile, error) {
	var profile models.MentorProfile
	if err := r.db.GetContext(ctx, &profile, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor profile: %w", err)
	}
	return &profile, nil
}
