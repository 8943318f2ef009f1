package models

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from lowest to highest rank.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Rank is the sort ordinal: low < medium < high. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// PriorityRankExpr returns a portable SQL expression evaluating column to its rank.
func PriorityRankExpr(column string) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for _, p := range Priorities {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, p.Rank())
	}
	b.WriteString(" ELSE 0 END")
	return b.String()
}

type Task struct {
	ID          uint64     `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"type:varchar(200);not null" json:"title"`
	Description string     `gorm:"type:varchar(300)" json:"description"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	DueDate     *time.Time `json:"due_date"`
	Priority    Priority   `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Tags        string     `gorm:"type:varchar(255);not null;default:''" json:"tags"`
	Pinned      bool       `gorm:"not null;default:false" json:"pinned"`
	OwnerID     uint64     `gorm:"not null;index" json:"owner_id"`
	CreatedAt   time.Time  `gorm:"<-:create" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}
