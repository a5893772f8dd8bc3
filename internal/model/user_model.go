package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the directory entry the engine consults for contact fields.
// Identity itself is owned by the account service; email and phone may be
// absent and the channel preconditions handle that.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName  string    `gorm:"type:varchar(150)" json:"full_name"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone,omitempty"`
	Role      string    `gorm:"type:varchar(30);default:'user'" json:"role"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}
