package models

import "time"

type User struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	// Relations
	Tasks []Task `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}
