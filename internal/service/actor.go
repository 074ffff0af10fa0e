package service

import (
	"inkwell/internal/models"

	"github.com/google/uuid"
)

// Actor is the authenticated user on whose behalf a mutation runs.
type Actor struct {
	UserID uuid.UUID
	Role   models.UserRole
}

// IsAdmin reports whether the actor may act on any resource.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// canEditPost allows admins everywhere and authors on their own posts.
func (a Actor) canEditPost(p *models.Post) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == models.RoleAuthor && p.AuthorID == a.UserID
}
