package models

import "time"

// EducationLevel is a student's highest completed education.
type EducationLevel string

// Education levels accepted on student profiles.
const (
	EducationHighSchool              EducationLevel = "high_school"
	EducationBachelor                EducationLevel = "bachelor"
	EducationMaster                  EducationLevel = "master"
	EducationPhD                     EducationLevel = "phd"
	EducationProfessionalCertificate EducationLevel = "professional_certificate"
	EducationSelfTaught              EducationLevel = "self_taught"
)

// StudentProfile describes a learner and the course and stack they are pursuing.
type StudentProfile struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	FullName       string         `db:"full_name" json:"full_name"`
	Email          string         `db:"email" json:"email"`
	Location       string         `db:"location" json:"location"`
	Phone          string         `db:"phone" json:"phone"`
	AvatarURL      string         `db:"avatar_url" json:"avatar_url"`
	EducationLevel EducationLevel `db:"education_level" json:"education_level"`
	SelectedCourse string         `db:"selected_course" json:"selected_course"`
	SelectedStack  string         `db:"selected_stack" json:"selected_stack"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentProfileRequest is the payload for creating or replacing a student's own profile.
type StudentProfileRequest struct {
	FullName       string         `json:"full_name" validate:"required,min=2,max=50"`
	Location       string         `json:"location" validate:"required,max=120"`
	Phone          string         `json:"phone" validate:"required,e164|numeric,min=7,max=16"`
	AvatarURL      string         `json:"avatar_url" validate:"omitempty,url"`
	EducationLevel EducationLevel `json:"education_level" validate:"required,oneof=high_school bachelor master phd professional_certificate self_taught"`
	SelectedCourse string         `json:"selected_course" validate:"required,oneof=web_development data_science mobile_app_development ui_ux_design digital_marketing machine_learning cybersecurity cloud_computing devops blockchain_development"`
	SelectedStack  string         `json:"selected_stack" validate:"required,max=60"`
}
