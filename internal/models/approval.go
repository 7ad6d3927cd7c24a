package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Approval is one immutable managerial decision event. A booking can carry
// several rows over its history even though current policy uses one level.
type Approval struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id"`
	ApproverID int64     `json:"approver_id"`
	Decision   Decision  `json:"decision"`
	Reason     string    `json:"reason,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// MaxReasonLength caps the stored decision reason.
const MaxReasonLength = 500

// NormalizeReason collapses whitespace runs and truncates to MaxReasonLength
// characters. The cut counts runes so a multi-byte reason stays valid UTF-8.
func NormalizeReason(reason string) string {
	normalized := strings.Join(strings.Fields(reason), " ")
	if utf8.RuneCountInString(normalized) > MaxReasonLength {
		runes := []rune(normalized)
		normalized = string(runes[:MaxReasonLength])
	}
	return normalized
}

// PendingRequest annotates a REQUESTED booking with how long it has been
// waiting, in whole hours since submission.
type PendingRequest struct {
	Booking      Booking `json:"booking"`
	HoursWaiting int64   `json:"hours_waiting"`
}
