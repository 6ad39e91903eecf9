package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Permission is a named capability granted to roles.
type Permission struct {
	ID   int64
	Name string
}

// Role is a named permission bundle assigned to users.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions []Permission
}

// User is a registered account. PasswordHash is never exposed outside the use cases.
type User struct {
	ID           int64     // Internal identifier, used by token records
	UID          uuid.UUID // External stable identifier (UUIDv7), used as the token subject
	Email        string
	PasswordHash string //nolint:gosec // password digest, not plaintext
	Name         string
	DisplayName  string
	AvatarURL    string
	Gender       string
	BirthDate    *time.Time
	AssetUserID  string
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleNames returns the names of the user's roles in assignment order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	return names
}

// PermissionNames returns the sorted, de-duplicated union of the permissions
// granted by the user's roles.
func (u *User) PermissionNames() []string {
	names := make([]string, 0)
	for _, role := range u.Roles {
		for _, perm := range role.Permissions {
			names = append(names, perm.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// TokenPayload builds the claims carried by both token families for this user.
func (u *User) TokenPayload() TokenPayload {
	return TokenPayload{
		Subject:     u.UID,
		Roles:       u.RoleNames(),
		Permissions: u.PermissionNames(),
	}
}

// RegisterInput holds the data needed to create a user.
type RegisterInput struct {
	Email       string
	Password    string //nolint:gosec // plaintext only while hashing
	Name        string
	Role        string
	DisplayName string
	AvatarURL   string
	Gender      string
	BirthDate   *time.Time
	AssetUserID string
}
