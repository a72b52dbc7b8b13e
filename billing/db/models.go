package db

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email    string `gorm:"unique"`
	UUID     string
	Password string
	Name     string
	Phone    string
}

type Team struct {
	gorm.Model
	Name          string
	Slug          string `gorm:"unique"`
	Plan          string
	BillingStatus string
	OwnerID       uint
}

type TeamMember struct {
	gorm.Model
	TeamID uint
	UserID uint
	Role   string // admin, member
	Status string
}

type Subscription struct {
	gorm.Model
	TeamID           uint `gorm:"unique"`
	Plan             string
	Status           string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	Gateway          string
	GatewayReference string
}

// Transaction statuses. pending is the only non-terminal status; reversed is
// the explicit reversal exit from completed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
	StatusReversed  = "reversed"
)

func IsTerminalStatus(status string) bool {
	return status != StatusPending
}

type Transaction struct {
	gorm.Model
	MerchantOrderID  string `gorm:"unique"`
	UserID           uint
	PlanID           string
	Amount           int64 // IDR minor units
	Currency         string
	Status           string
	Method           string // va, qris
	GatewayReference string
	Simulated        bool
}

// TransactionLog is the append-only audit trail. Rows are never updated.
type TransactionLog struct {
	ID               string `gorm:"primaryKey"` // uuid
	MerchantOrderID  string `gorm:"index"`
	FromStatus       string
	ToStatus         string
	StatusCode       string
	GatewayReference string
	Amount           int64
	RawBody          string
	CreatedAt        time.Time
}
