package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
)

// authorizeRole admits the actor only when it is authenticated and holds one of roles.
func authorizeRole(actor models.Actor, roles ...models.UserRole) error {
	if actor.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
}

// authorizeAssignedMentor admits only the mentor currently assigned to req.
// An unassigned request is closed to every mentor.
func authorizeAssignedMentor(actor models.Actor, req *models.Request) error {
	if !req.IsAssignedTo(actor.ID) {
		return appErrors.Clone(appErrors.ErrForbidden, "request is not assigned to you")
	}
	return nil
}

type mentorDirectory interface {
	FindByUserID(ctx context.Context, userID string) (*models.MentorProfile, error)
}

// AssignmentResolver validates mentor references before they are attached to a request.
type AssignmentResolver struct {
	mentors mentorDirectory
}

// NewAssignmentResolver constructs the resolver.
func NewAssignmentResolver(mentors mentorDirectory) *AssignmentResolver {
	return &AssignmentResolver{mentors: mentors}
}

// Resolve returns the mentor profile for mentorID when it exists and is approved.
func (r *AssignmentResolver) Resolve(ctx context.Context, mentorID string) (*models.MentorProfile, error) {
	profile, err := r.mentors.FindByUserID(ctx, mentorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if !profile.IsActive() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found or not approved")
	}
	return profile, nil
}

// AssignMentor points req at mentorID. Resolved requests cannot change hands.
func (r *AssignmentResolver) AssignMentor(ctx context.Context, req *models.Request, mentorID string) error {
	if req.IsAssignedTo(mentorID) {
		return nil
	}
	if req.Status.IsTerminal() {
		return appErrors.Clone(appErrors.ErrRequestResolved, "resolved requests cannot be reassigned")
	}
	if _, err := r.Resolve(ctx, mentorID); err != nil {
		return err
	}
	id := mentorID
	req.AssignedMentorID = &id
	return nil
}
