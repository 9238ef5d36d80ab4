package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of account kinds.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole returns the role named by s, or false when s is not a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash, never serialised
	Role      Role               `bson:"role" json:"role"`
	FirstName string             `bson:"firstName" json:"firstName"`
	LastName  string             `bson:"lastName" json:"lastName"`
	Phone     string             `bson:"phone" json:"phone"`
	Specialty string             `bson:"specialty,omitempty" json:"specialty,omitempty"`

	IsVerified              bool       `bson:"isVerified" json:"isVerified"`
	VerificationCode        string     `bson:"verificationCode,omitempty" json:"-"`
	VerificationCodeExpires *time.Time `bson:"verificationCodeExpires,omitempty" json:"-"`
	ResetPasswordCode       string     `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpires    *time.Time `bson:"resetPasswordExpires,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// FullName is used in notification bodies.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Summary is the populated form of a user reference.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Specialty: u.Specialty,
	}
}

// Profile is the minimal payload returned by login and verification.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		IsVerified: u.IsVerified,
	}
}

type Profile struct {
	ID         primitive.ObjectID `json:"id"`
	Email      string             `json:"email,omitempty"`
	Role       Role               `json:"role"`
	FirstName  string             `json:"firstName"`
	LastName   string             `json:"lastName"`
	Phone      string             `json:"phone"`
	IsVerified bool               `json:"isVerified"`
}

type UserSummary struct {
	ID        primitive.ObjectID `json:"id"`
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Email     string             `json:"email,omitempty"`
	Phone     string             `json:"phone,omitempty"`
	Specialty string             `json:"specialty,omitempty"`
}
