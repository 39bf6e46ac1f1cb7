package models

import "time"

// User roles recognised by the risk pipeline.
const (
	RoleStudent = "student"
	RoleMentor  = "mentor"
)

// User is an account known to the system, either a student or a mentor.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;index;not null;default:student" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsMentor reports whether the user receives mentor summaries.
func (u User) IsMentor() bool {
	return u.Role == RoleMentor
}
