package models

import "time"

// RequestStatus is the lifecycle state of a mentorship request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusResolved RequestStatus = "resolved"
)

var requestStatusRank = map[RequestStatus]int{
	RequestStatusPending:  0,
	RequestStatusAccepted: 1,
	RequestStatusResolved: 2,
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	_, ok := requestStatusRank[s]
	return ok
}

// IsTerminal reports whether no further transition is defined from s.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusResolved
}

// IsActive reports whether the request still counts against a student's open requests.
func (s RequestStatus) IsActive() bool {
	return s == RequestStatusPending || s == RequestStatusAccepted
}

// CanTransitionTo allows staying put or moving forward, never backwards.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	from, ok := requestStatusRank[s]
	if !ok {
		return false
	}
	to, ok := requestStatusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// Reply is one message in a request's thread.
type Reply struct {
	AuthorMentorID string    `db:"author_mentor_id" json:"authorMentorId"`
	Text           string    `db:"text" json:"text"`
	PostedAt       time.Time `db:"posted_at" json:"postedAt"`
}

// Request is a student's ask for mentorship in a category/stack.
type Request struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"studentId"`
	Category         string        `db:"category" json:"category"`
	Stack            string        `db:"stack" json:"stack"`
	Status           RequestStatus `db:"status" json:"status"`
	AssignedMentorID *string       `db:"assigned_mentor_id" json:"assignedMentorId"`
	Notes            string        `db:"notes" json:"notes"`
	Replies          []Reply       `db:"-" json:"replies"`
	RequestedAt      time.Time     `db:"requested_at" json:"requestedAt"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updatedAt"`
}

// IsAssignedTo reports whether mentorID is the request's current mentor.
func (r Request) IsAssignedTo(mentorID string) bool {
	return r.AssignedMentorID != nil && *r.AssignedMentorID == mentorID
}

// RequestDetail is a request with its student and mentor resolved for display.
type RequestDetail struct {
	Request
	Student *UserSummary   `json:"student,omitempty"`
	Mentor  *MentorSummary `json:"mentor,omitempty"`
}

// RequestFilter narrows admin listings.
type RequestFilter struct {
	Status *RequestStatus
}

// CreateRequestInput is the student's submission.
type CreateRequestInput struct {
	Category string `json:"category" validate:"required,max=120"`
	Stack    string `json:"stack" validate:"required,max=120"`
}

// UpdateRequestInput is the admin's partial update; nil fields are left untouched.
type UpdateRequestInput struct {
	Status   *RequestStatus `json:"status" validate:"omitempty,oneof=pending accepted resolved"`
	MentorID *string        `json:"mentorId" validate:"omitempty,uuid"`
	Notes    *string        `json:"notes" validate:"omitempty,max=2000"`
}

// Empty reports whether no field was supplied.
func (in UpdateRequestInput) Empty() bool {
	return in.Status == nil && in.MentorID == nil && in.Notes == nil
}

// ReplyInput is a mentor's reply body.
type ReplyInput struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// RequestStats counts requests per status.
type RequestStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Resolved int `json:"resolved"`
}
