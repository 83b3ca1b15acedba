package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// VerificationStatus tracks the admin review of a mentor profile.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// DocumentKind names an uploaded mentor document slot.
type DocumentKind string

const (
	DocumentProfilePicture     DocumentKind = "profile_picture"
	DocumentIDProof            DocumentKind = "id_proof"
	DocumentQualificationProof DocumentKind = "qualification_proof"
	DocumentCV                 DocumentKind = "cv"
)

// Valid reports whether k is a known document slot.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentProfilePicture, DocumentIDProof, DocumentQualificationProof, DocumentCV:
		return true
	}
	return false
}

// Multiple reports whether the slot accumulates files rather than replacing them.
func (k DocumentKind) Multiple() bool {
	return k == DocumentQualificationProof
}

// Document is a stored file reference.
type Document struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	URL         string    `json:"url,omitempty"`
}

// Documents groups stored files by kind and is persisted as JSONB.
type Documents map[DocumentKind][]Document

// Value implements driver.Valuer.
func (d Documents) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *Documents) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Documents{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("documents: unsupported scan type")
	}
	out := Documents{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*d = out
	return nil
}

// MentorProfile is a mentor's capability descriptor.
type MentorProfile struct {
	ID                 string             `db:"id" json:"id"`
	UserID             string             `db:"user_id" json:"user_id"`
	FullName           string             `db:"full_name" json:"full_name"`
	Email              string             `db:"email" json:"email"`
	Headline           string             `db:"headline" json:"headline"`
	Bio                string             `db:"bio" json:"bio"`
	CurrentRole        string             `db:"current_position" json:"current_role"`
	Company            string             `db:"company" json:"company"`
	YearsOfExperience  int                `db:"years_of_experience" json:"years_of_experience"`
	Expertise          pq.StringArray     `db:"expertise" json:"expertise"`
	LinkedIn           string             `db:"linkedin" json:"linkedin"`
	GitHub             string             `db:"github" json:"github"`
	Portfolio          string             `db:"portfolio" json:"portfolio"`
	PhoneNumber        string             `db:"phone_number" json:"phone_number"`
	Documents          Documents          `db:"documents" json:"documents"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the mentor can be assigned to requests.
func (p MentorProfile) IsActive() bool {
	return p.VerificationStatus == VerificationApproved
}

// MentorSummary is the display projection embedded in request listings.
type MentorSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Expertise []string `json:"expertise"`
}

// MentorFilter narrows admin listings of mentor profiles.
type MentorFilter struct {
	Status *VerificationStatus
}

// UpsertMentorProfileRequest is the mentor's own profile payload.
type UpsertMentorProfileRequest struct {
	FullName          string   `json:"full_name" validate:"required,max=150"`
	Headline          string   `json:"headline" validate:"omitempty,max=200"`
	Bio               string   `json:"bio" validate:"omitempty,max=4000"`
	CurrentRole       string   `json:"current_role" validate:"omitempty,max=150"`
	Company           string   `json:"company" validate:"omitempty,max=150"`
	YearsOfExperience int      `json:"years_of_experience" validate:"gte=0,lte=70"`
	Expertise         []string `json:"expertise" validate:"required,min=1,max=20,dive,required,max=60"`
	LinkedIn          string   `json:"linkedin" validate:"omitempty,url"`
	GitHub            string   `json:"github" validate:"omitempty,url"`
	Portfolio         string   `json:"portfolio" validate:"omitempty,url"`
	PhoneNumber       string   `json:"phone_number" validate:"omitempty,max=30"`
}

// VerificationRequest is the admin's review decision.
type VerificationRequest struct {
	Status VerificationStatus `json:"status" validate:"required,oneof=pending approved rejected"`
}
