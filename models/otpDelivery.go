package models

import (
	"time"

	"github.com/mmdatafocus/hr_backend/config"
)

// OTPDelivery is the outbox row written in the issuing transaction; the dispatcher
// publishes it after commit.
type OTPDelivery struct {
	ID                int        `gorm:"primary_key;index:idx_delivery_dispatch,priority:3" json:"id"`
	ChallengeId       int        `gorm:"not null;index" json:"challenge_id"`
	EmployeeId        int        `gorm:"not null;index" json:"employee_id"`
	Channel           string     `gorm:"size:20;not null" json:"channel"`
	Recipient         string     `gorm:"size:30" json:"recipient"`
	Status            string     `gorm:"size:20;not null;default:'PENDING';index:idx_delivery_dispatch,priority:1" json:"status"` // PENDING|PROCESSING|SENT|FAILED|DEAD|SKIPPED
	Attempts          int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt     *time.Time `gorm:"index:idx_delivery_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt          *time.Time `gorm:"index" json:"locked_at"`
	LockedBy          *string    `gorm:"size:100" json:"locked_by"`
	LastError         *string    `gorm:"type:text" json:"last_error"`
	ProviderMessageId *string    `gorm:"size:255" json:"provider_message_id"`
	SentAt            *time.Time `json:"sent_at"`
	CorrelationId     string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToDeliveryMessage(d OTPDelivery, c OTPChallenge) config.OTPDeliveryMessage {
	return config.OTPDeliveryMessage{
		DeliveryId:    d.ID,
		ChallengeId:   c.ID,
		EmployeeId:    d.EmployeeId,
		Channel:       d.Channel,
		Recipient:     d.Recipient,
		Code:          c.Code,
		ExpiresAt:     c.ExpiresAt,
		CorrelationId: d.CorrelationId,
	}
}
