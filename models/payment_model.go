package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// Business purposes a payment settles. The allocation types are carried for
// compatibility with existing records only.
const (
	PaymentTypeFee               = "fee"
	PaymentTypeEventRegistration = "event_registration"
	PaymentTypeHostel            = "hostel"
	PaymentTypeLibraryFine       = "library_fine"
	PaymentTypeTransport         = "transport"
	PaymentTypeOther             = "other"
)

const (
	RefundNone       = "none"
	RefundProcessing = "processing"
	RefundProcessed  = "processed"
	RefundFailed     = "failed"
)

type Payment struct {
	Base
	StudentID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"studentId"`
	Student     *User         `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Type        string        `gorm:"size:30;not null;index" json:"type"`
	ReferenceID string        `gorm:"size:100;index" json:"referenceId"`
	Amount      float64       `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency    string        `gorm:"size:3;not null" json:"currency"`
	Status      PaymentStatus `gorm:"size:20;not null;index" json:"status"`

	PaymentMethod        string  `gorm:"size:30" json:"paymentMethod"`
	Gateway              string  `gorm:"size:30" json:"gateway"`
	GatewayOrderID       *string `gorm:"size:255;uniqueIndex" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID     *string `gorm:"size:255;index" json:"gatewayPaymentId,omitempty"`
	GatewaySignature     *string `gorm:"size:255" json:"-"`
	GatewayTransactionID *string `gorm:"size:255" json:"gatewayTransactionId,omitempty"`

	PaymentDate *time.Time     `json:"paymentDate,omitempty"`
	DueDate     *time.Time     `json:"dueDate,omitempty"`
	Description string         `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	ReceiptURL  *string        `gorm:"size:500" json:"receiptUrl,omitempty"`

	RefundAmount *float64   `gorm:"type:numeric(12,2)" json:"refundAmount,omitempty"`
	RefundDate   *time.Time `json:"refundDate,omitempty"`
	RefundReason *string    `gorm:"type:text" json:"refundReason,omitempty"`
	RefundStatus *string    `gorm:"size:20" json:"refundStatus,omitempty"`
}

type PaymentMethod struct {
	Base
	StudentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"studentId"`
	Type      string         `gorm:"size:20;not null" json:"type"`
	Provider  string         `gorm:"size:50" json:"provider"`
	Label     string         `gorm:"size:100" json:"label"`
	Last4     string         `gorm:"size:4" json:"last4,omitempty"`
	Details   datatypes.JSON `json:"details,omitempty"`
	IsDefault bool           `gorm:"not null" json:"isDefault"`
	IsActive  bool           `gorm:"not null" json:"isActive"`
}

type Refund struct {
	Base
	PaymentID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"paymentId"`
	Payment         *Payment   `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	Amount          float64    `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reason          string     `gorm:"type:text" json:"reason"`
	Status          string     `gorm:"size:20;not null;index" json:"status"`
	GatewayRefundID *string    `gorm:"size:255;uniqueIndex" json:"gatewayRefundId,omitempty"`
	RequestedByID   *uuid.UUID `gorm:"type:uuid" json:"requestedById,omitempty"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
}

type PaymentGatewayConfig struct {
	Base
	Name             string                      `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Provider         string                      `gorm:"size:30;not null" json:"provider"`
	KeyID            string                      `gorm:"size:255" json:"-"`
	KeySecret        string                      `gorm:"size:255" json:"-"`
	WebhookSecret    string                      `gorm:"size:255" json:"-"`
	IsActive         bool                        `gorm:"not null" json:"isActive"`
	IsTestMode       bool                        `gorm:"not null" json:"isTestMode"`
	SupportedMethods datatypes.JSONSlice[string] `json:"supportedMethods"`
	Settings         datatypes.JSON              `json:"settings,omitempty"`
}

// PaymentGatewayEvent records each delivered webhook once, keyed by the gateway event id
// or the body digest.
type PaymentGatewayEvent struct {
	ID          string         `gorm:"size:120;primaryKey" json:"id"`
	Gateway     string         `gorm:"size:30;not null" json:"gateway"`
	Event       string         `gorm:"size:60;not null;index" json:"event"`
	Payload     datatypes.JSON `json:"payload"`
	Result      string         `gorm:"size:30" json:"result"`
	ReceivedAt  time.Time      `json:"receivedAt"`
	ProcessedAt *time.Time     `json:"processedAt,omitempty"`
}
