package domain

import (
	"time"

	"github.com/google/uuid"
)

type VoteType string

const (
	VoteTypeFreeText       VoteType = "free_text"
	VoteTypeMultipleChoice VoteType = "multiple_choice"
	VoteTypeYesNo          VoteType = "yes_no"
)

func (t VoteType) Valid() bool {
	switch t {
	case VoteTypeFreeText, VoteTypeMultipleChoice, VoteTypeYesNo:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityEveryone  Visibility = "everyone"
	VisibilityAdminOnly Visibility = "admin_only"
	VisibilityAnonymous Visibility = "anonymous"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityEveryone, VisibilityAdminOnly, VisibilityAnonymous:
		return true
	}
	return false
}

type VoteStatus string

const (
	StatusOpen   VoteStatus = "open"
	StatusClosed VoteStatus = "closed"
)

func (s VoteStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

const (
	AnswerYes = "yes"
	AnswerNo  = "no"
)

type Vote struct {
	ID                      uuid.UUID    `json:"id"`
	Title                   string       `json:"title"`
	AdminPasswordHash       string       `json:"-"`
	TotalExpectedVoters     int          `json:"total_expected_voters"`
	Type                    VoteType     `json:"vote_type"`
	Options                 []VoteOption `json:"options"`
	Visibility              Visibility   `json:"visibility_setting"`
	Status                  VoteStatus   `json:"status"`
	CreatedAt               time.Time    `json:"created_at"`
	ClosedAt                *time.Time   `json:"closed_at,omitempty"`
	AllowEmptyVotes         bool         `json:"allow_empty_votes"`
	AllowMultipleSelections bool         `json:"allow_multiple_selections"`
	AllowAddingOptions      bool         `json:"allow_adding_options"`
	MinCharacters           int          `json:"min_characters"`
	Summary                 *Summary     `json:"summary,omitempty"`
}

type VoteOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// IsAnonymousFreeText reports whether submissions are split into a voted stub
// and an unlinked content row.
func (v *Vote) IsAnonymousFreeText() bool {
	return v.Type == VoteTypeFreeText && v.Visibility == VisibilityAnonymous
}

func (v *Vote) Option(id string) (VoteOption, bool) {
	for _, opt := range v.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return VoteOption{}, false
}

func (v *Vote) IsOpen() bool {
	return v.Status == StatusOpen
}
