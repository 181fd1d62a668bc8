package domain

import (
	"time"

	"github.com/google/uuid"
)

type ResetRequest struct {
	ID                    uuid.UUID `json:"id"`
	VoteID                uuid.UUID `json:"vote_id"`
	VoterAttendanceNumber int       `json:"voter_attendance_number"`
	RequestedAt           time.Time `json:"requested_at"`
}
