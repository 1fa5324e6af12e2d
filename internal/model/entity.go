package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusInReview TicketStatus = "in_review"
	TicketStatusClose    TicketStatus = "close"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInReview, TicketStatusClose:
		return true
	}
	return false
}

type User struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Role         Role      `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Ticket struct {
	ID          uint64       `gorm:"primaryKey" json:"id"`
	Title       string       `gorm:"type:varchar(255);index;not null" json:"title"`
	Description *string      `gorm:"type:text" json:"description"`
	Status      TicketStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	CreatedBy   uint64       `gorm:"column:created_by;index;not null" json:"created_by"`

	Creator *User   `gorm:"foreignKey:CreatedBy" json:"-"`
	Replies []Reply `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

type Reply struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TicketID  uint64    `gorm:"column:ticket_id;index;not null" json:"ticket_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
	RepliedBy uint64    `gorm:"column:replied_by;not null" json:"replied_by"`
}
