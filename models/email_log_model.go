package models

const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

type EmailLog struct {
	Base
	To        string `gorm:"size:255;not null;index" json:"to"`
	Subject   string `gorm:"size:255" json:"subject"`
	Template  string `gorm:"size:50;index" json:"template"`
	Provider  string `gorm:"size:20" json:"provider"`
	Status    string `gorm:"size:10;not null;index" json:"status"`
	MessageID string `gorm:"size:255" json:"messageId,omitempty"`
	Error     string `gorm:"type:text" json:"error,omitempty"`
}
