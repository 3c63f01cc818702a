package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table. PostgreSQL generates UUIDs via uuid_generate_v7().
// Username and Email carry unique indexes, which is what makes signup conflict
// detection race-free.
type AccountModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Username         string     `gorm:"type:varchar(100);unique;not null"`
	Email            string     `gorm:"type:varchar(255);unique;not null"`
	PasswordHash     string     `gorm:"type:varchar(255);not null"`
	ResetToken       *string    `gorm:"type:varchar(255);index"`
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
