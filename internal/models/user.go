package models

import "time"

// Gender values accepted at signup. The avatar template is picked from these.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// User represents a registered chat user.
type User struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	FullName   string    `json:"fullName" gorm:"type:varchar(255)" validate:"required"`
	Username   string    `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Password   string    `json:"-" gorm:"type:varchar(255)"` // bcrypt hash, never serialized
	Gender     string    `json:"gender" gorm:"type:varchar(10)" validate:"required,oneof=male female"`
	ProfilePic string    `json:"profilePic" gorm:"type:varchar(255)"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Profile is the public projection of a User returned by the API.
type Profile struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}

// PublicProfile returns the projection of the user that is safe to serialize.
// The password hash is excluded by construction.
func (u *User) PublicProfile() Profile {
	return Profile{
		ID:         u.ID,
		FullName:   u.FullName,
		Username:   u.Username,
		ProfilePic: u.ProfilePic,
	}
}
