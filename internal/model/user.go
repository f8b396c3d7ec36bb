package model

import "time"

// Role is the capability class of an account.
type Role string

const (
	RoleClient    Role = "client"
	RoleMotivator Role = "motivator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleMotivator, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the lifecycle state of an account.  Only active users may act.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusPending  UserStatus = "pending"
)

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusPending:
		return true
	}
	return false
}

// Gender is the routing attribute used to match motivators with clients.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// User represents an account record as stored in the `users` collection
// (or table).  The same struct serves the document store and the SQL
// store; handlers never serialize it directly but go through Public().
//
// Fields:
//
//	ID: opaque identifier (ULID string).
//	FullName: display name.
//	Email: unique, stored lower-cased.
//	PasswordHash: bcrypt hash, never exposed.
//	Gender: routing attribute for gender matching.
//	Role: client, motivator or admin.
//	Status: active, inactive or pending.
//	ProfilePhoto: content-store URL, required at creation.
//	Bio..Reason: motivator-only profile fields.
//	RefreshTokenHash: SHA-256 of the single live refresh token (empty when logged out).
type User struct {
	ID               string     `bson:"_id" json:"id"`
	FullName         string     `bson:"full_name" json:"fullName"`
	Email            string     `bson:"email" json:"email"`
	PasswordHash     string     `bson:"password_hash" json:"-"`
	Gender           Gender     `bson:"gender" json:"gender"`
	Role             Role       `bson:"role" json:"role"`
	Status           UserStatus `bson:"status" json:"status"`
	ProfilePhoto     string     `bson:"profile_photo" json:"profilePhoto"`
	Bio              string     `bson:"bio,omitempty" json:"bio,omitempty"`
	Experience       string     `bson:"experience,omitempty" json:"experience,omitempty"`
	Specialities     string     `bson:"specialities,omitempty" json:"specialities,omitempty"`
	Reason           string     `bson:"reason,omitempty" json:"reason,omitempty"`
	RefreshTokenHash string     `bson:"refresh_token_hash,omitempty" json:"-"`
	CreatedAt        time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the account may act.
func (u *User) IsActive() bool { return u.Status == UserStatusActive }

// CanRespond reports whether the account may author responses.  Motivators
// must have been approved; admins only need to be active.
func (u *User) CanRespond() bool {
	if !u.IsActive() {
		return false
	}
	return u.Role == RoleMotivator || u.Role == RoleAdmin
}

// Summary returns the public identity of the user used when resolving
// references on messages and responses.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.FullName, Email: u.Email, Gender: u.Gender}
}

// PublicUser is the caller-facing view of a User: every field except the
// credential material.
type PublicUser struct {
	ID           string     `json:"id"`
	FullName     string     `json:"fullName"`
	Email        string     `json:"email"`
	Gender       Gender     `json:"gender"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	ProfilePhoto string     `json:"profilePhoto"`
	Bio          string     `json:"bio,omitempty"`
	Experience   string     `json:"experience,omitempty"`
	Specialities string     `json:"specialities,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Public strips credential fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		Gender:       u.Gender,
		Role:         u.Role,
		Status:       u.Status,
		ProfilePhoto: u.ProfilePhoto,
		Bio:          u.Bio,
		Experience:   u.Experience,
		Specialities: u.Specialities,
		Reason:       u.Reason,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// UserFilter narrows user listings.  Zero values mean "any".
type UserFilter struct {
	Role   Role
	Status UserStatus
	Gender Gender
}

// ProfileUpdate carries self-service profile edits.  Nil fields are left
// unchanged.
type ProfileUpdate struct {
	FullName     *string
	Email        *string
	Bio          *string
	Specialities *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.Bio == nil && p.Specialities == nil
}
