package domain

import (
	"time"

	"github.com/google/uuid"
)

type ValueKind int

const (
	ValueEmpty ValueKind = iota
	ValueSingleChoice
	ValueMultiChoice
	ValueFreeText
	// ValueVotedStub marks a participation-only row of an anonymous free
	// text vote. It carries no content.
	ValueVotedStub
)

func (k ValueKind) String() string {
	switch k {
	case ValueSingleChoice:
		return "single_choice"
	case ValueMultiChoice:
		return "multi_choice"
	case ValueFreeText:
		return "free_text"
	case ValueVotedStub:
		return "voted_stub"
	default:
		return "empty"
	}
}

// Choice is either one of the vote's options or a voter-added custom entry.
type Choice struct {
	OptionID string `json:"option_id,omitempty"`
	Custom   string `json:"custom,omitempty"`
}

func (c Choice) IsCustom() bool {
	return c.OptionID == "" && c.Custom != ""
}

// Value is the answer of one submission. Only the fields matching Kind are
// meaningful.
type Value struct {
	Kind    ValueKind
	Choices []Choice
	Text    string
}

func EmptyValue() Value {
	return Value{Kind: ValueEmpty}
}

func SingleChoice(c Choice) Value {
	return Value{Kind: ValueSingleChoice, Choices: []Choice{c}}
}

func MultiChoice(cs ...Choice) Value {
	return Value{Kind: ValueMultiChoice, Choices: cs}
}

func FreeText(text string) Value {
	if text == "" {
		return EmptyValue()
	}
	return Value{Kind: ValueFreeText, Text: text}
}

func VotedStub() Value {
	return Value{Kind: ValueVotedStub}
}

func (v Value) IsEmpty() bool {
	return v.Kind == ValueEmpty
}

// Voter identifies who a submission row belongs to. Anonymous content rows
// carry no attendance number at all.
type Voter struct {
	AttendanceNumber int
	Anonymous        bool
}

func AttendanceVoter(n int) Voter {
	return Voter{AttendanceNumber: n}
}

func AnonymousVoter() Voter {
	return Voter{Anonymous: true}
}

type Submission struct {
	ID          uuid.UUID
	VoteID      uuid.UUID
	Voter       Voter
	Value       Value
	SubmittedAt time.Time
}

// Counts reports whether the row represents a voter for participation
// tracking. Anonymous content rows do not.
func (s *Submission) Counts() bool {
	return !s.Voter.Anonymous
}
