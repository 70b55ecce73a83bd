package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	FeePending = "pending"
	FeePartial = "partial"
	FeePaid    = "paid"
	FeeOverdue = "overdue"
)

type Fee struct {
	Base
	StudentID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_fee_student_term" json:"studentId"`
	Student      *User          `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	AcademicYear string         `gorm:"size:20;not null;uniqueIndex:idx_fee_student_term" json:"academicYear"`
	Semester     int            `gorm:"not null;uniqueIndex:idx_fee_student_term" json:"semester"`
	Breakdown    datatypes.JSON `json:"feeStructure,omitempty"`
	TotalAmount  float64        `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	PaidAmount   float64        `gorm:"type:numeric(12,2);not null" json:"paidAmount"`
	DueAmount    float64        `gorm:"type:numeric(12,2);not null" json:"dueAmount"`
	DueDate      time.Time      `gorm:"not null;index" json:"dueDate"`
	Status       string         `gorm:"size:20;not null;index" json:"status"`
	Payments     []FeePayment   `gorm:"foreignKey:FeeID;constraint:OnDelete:CASCADE" json:"paymentHistory,omitempty"`
}

// Credit applies a received amount and recomputes the outstanding balance.
func (f *Fee) Credit(amount float64) {
	f.PaidAmount = round2(f.PaidAmount + amount)
	f.Recompute()
}

// Recompute derives DueAmount and Status from TotalAmount and PaidAmount.
func (f *Fee) Recompute() {
	f.DueAmount = math.Max(0, round2(f.TotalAmount-f.PaidAmount))
	switch {
	case f.DueAmount == 0:
		f.Status = FeePaid
	case f.PaidAmount > 0:
		f.Status = FeePartial
	}
}

type FeePayment struct {
	Base
	FeeID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"feeId"`
	PaymentID     *uuid.UUID `gorm:"type:uuid;index" json:"paymentId,omitempty"`
	Amount        float64    `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaidAt        time.Time  `json:"paymentDate"`
	Method        string     `gorm:"size:30" json:"paymentMethod"`
	TransactionID string     `gorm:"size:255" json:"transactionId"`
	ReceiptURL    *string    `gorm:"size:500" json:"receiptUrl,omitempty"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
