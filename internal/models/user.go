package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
	RoleAgent      Role = "agent"
)

// User represents a platform user.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayInfo is the subset of user fields embedded in broadcast payloads.
type DisplayInfo struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// ToDisplayInfo converts User to DisplayInfo.
func (u *User) ToDisplayInfo() DisplayInfo {
	return DisplayInfo{
		ID:        u.ID,
		FullName:  u.FullName,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}
