package models

import (
	"time"
)

// Account represents a registered user of the platform as stored in the users table.
// It is never serialized directly; use ToAccountResponse for API payloads.
type Account struct {
	ID           int64      `db:"id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	PasswordHash string     `db:"password" json:"-"`
	IsActive     bool       `db:"is_active"`
	IsStaff      bool       `db:"is_staff"`
	DateJoined   time.Time  `db:"date_joined"`
	LastLogin    *time.Time `db:"last_login"`
}

// AccountUpdate carries the writable profile fields. A nil field was not supplied.
type AccountUpdate struct {
	Username  *string `json:"username" binding:"omitnil,min=1,max=150,username"`
	Email     *string `json:"email" binding:"omitnil,max=254,email_or_blank"`
	FirstName *string `json:"first_name" binding:"omitnil,max=150"`
	LastName  *string `json:"last_name" binding:"omitnil,max=150"`
}

// IsEmpty reports whether no field was supplied.
func (u AccountUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.FirstName == nil && u.LastName == nil
}

// AccountResponse is the wire representation of an Account. Password is never part of it.
type AccountResponse struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	IsActive   bool       `json:"is_active"`
	IsStaff    bool       `json:"is_staff"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  *time.Time `json:"last_login"`
}

// WritableFields lists the profile fields a caller may set on their own account.
var WritableFields = map[string]struct{}{
	"username":   {},
	"email":      {},
	"first_name": {},
	"last_name":  {},
}

// ReadOnlyFields lists fields that are rejected when present in an update payload.
var ReadOnlyFields = map[string]struct{}{
	"id":          {},
	"is_active":   {},
	"is_staff":    {},
	"date_joined": {},
	"last_login":  {},
	"password":    {},
}

// ToAccountResponse projects an Account onto its public fields.
func ToAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		IsActive:   a.IsActive,
		IsStaff:    a.IsStaff,
		DateJoined: a.DateJoined,
		LastLogin:  a.LastLogin,
	}
}
