// package models defines the data model for the affiliate migration service
package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Model defines the base interface for persistent models.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// AffiliateStatus is the lifecycle state of an [Affiliate].
type AffiliateStatus string

const (
	StatusActive   AffiliateStatus = "active"
	StatusInactive AffiliateStatus = "inactive"
	StatusPending  AffiliateStatus = "pending"
	StatusRejected AffiliateStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s AffiliateStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending, StatusRejected:
		return true
	}
	return false
}

// User is an account in the user directory.
type User struct {
	ID           int64
	Login        string
	Email        string
	RegisteredAt time.Time
	Roles        []string
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.Login) == "" {
		return fmt.Errorf("login is required")
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("invalid email: %q", u.Email)
	}
	return nil
}

// RoleCount is the number of users holding a role.
type RoleCount struct {
	Role  string
	Users int
}

// Affiliate is the record a [User] is converted into.
type Affiliate struct {
	ID             int64
	UserID         int64
	Status         AffiliateStatus
	PaymentEmail   string
	DateRegistered time.Time
}

// NewAffiliateFromUser builds an active affiliate carrying the user's email and registration date.
func NewAffiliateFromUser(u User) *Affiliate {
	return &Affiliate{
		UserID:         u.ID,
		Status:         StatusActive,
		PaymentEmail:   u.Email,
		DateRegistered: u.RegisteredAt,
	}
}

func (a *Affiliate) Validate() error {
	if a.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid status: %q", a.Status)
	}
	return nil
}

// Selectable user fields for [UserQuery.Fields].
const (
	FieldID         = "ID"
	FieldLogin      = "user_login"
	FieldEmail      = "user_email"
	FieldRegistered = "user_registered"
)

// Sort directions for [UserQuery.Order].
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// UserQuery filters a directory lookup.
//
// A zero Limit means unbounded. Empty Fields selects every field.
type UserQuery struct {
	RoleIn  []string
	Exclude []int64
	Offset  int
	Limit   int
	OrderBy string
	Order   string
	Fields  []string
}

// Selects reports whether field is part of the query's projection.
func (q UserQuery) Selects(field string) bool {
	return len(q.Fields) == 0 || slices.Contains(q.Fields, field)
}
