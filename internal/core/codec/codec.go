// Package codec is the only place that knows how submission values and
// voters are encoded in storage. Everything above it works with the tagged
// domain.Value and domain.Voter types.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/classvote/api/internal/core/domain"
)

const (
	// UserOptionPrefix marks a multiple-choice entry added by a voter.
	UserOptionPrefix = "USER_OPTION:"
	// VotedStubValue is stored in place of content for anonymous free text
	// votes so that re-submission can be blocked.
	VotedStubValue = "ANONYMOUS_VOTED_STUB"
	// AnonymousVoterKey replaces the attendance number on anonymous content rows.
	AnonymousVoterKey = "ANONYMOUS_CONTENT"
)

// EncodeValue returns the stored representation of v for a vote, or nil for
// an empty answer.
func EncodeValue(vote *domain.Vote, v domain.Value) (*string, error) {
	var out string
	switch v.Kind {
	case domain.ValueEmpty:
		return nil, nil
	case domain.ValueVotedStub:
		out = VotedStubValue
	case domain.ValueFreeText:
		out = v.Text
	case domain.ValueSingleChoice, domain.ValueMultiChoice:
		if len(v.Choices) == 0 {
			return nil, nil
		}
		if vote.Type == domain.VoteTypeYesNo {
			out = v.Choices[0].OptionID
			break
		}
		// Multiple choice values are always JSON arrays, even for a
		// single selection.
		raw := make([]string, 0, len(v.Choices))
		for _, c := range v.Choices {
			raw = append(raw, encodeChoice(c))
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to encode choices: %w", err)
		}
		out = string(b)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
	return &out, nil
}

// DecodeValue parses a stored value. Multiple-choice values that are not a
// JSON array are legacy rows and are read as a single choice of the raw string.
func DecodeValue(vote *domain.Vote, raw *string) domain.Value {
	if raw == nil {
		return domain.EmptyValue()
	}
	s := *raw
	if s == VotedStubValue {
		return domain.VotedStub()
	}

	switch vote.Type {
	case domain.VoteTypeYesNo:
		if s == "" {
			return domain.EmptyValue()
		}
		return domain.SingleChoice(domain.Choice{OptionID: s})
	case domain.VoteTypeMultipleChoice:
		var entries []string
		if err := json.Unmarshal([]byte(s), &entries); err != nil {
			if s == "" {
				return domain.EmptyValue()
			}
			return domain.SingleChoice(decodeChoice(s))
		}
		if len(entries) == 0 {
			return domain.EmptyValue()
		}
		choices := make([]domain.Choice, 0, len(entries))
		for _, e := range entries {
			choices = append(choices, decodeChoice(e))
		}
		if vote.AllowMultipleSelections {
			return domain.MultiChoice(choices...)
		}
		return domain.Value{Kind: domain.ValueSingleChoice, Choices: choices}
	default:
		return domain.FreeText(s)
	}
}

func encodeChoice(c domain.Choice) string {
	if c.IsCustom() {
		return UserOptionPrefix + c.Custom
	}
	return c.OptionID
}

func decodeChoice(s string) domain.Choice {
	if custom, ok := strings.CutPrefix(s, UserOptionPrefix); ok {
		return domain.Choice{Custom: custom}
	}
	return domain.Choice{OptionID: s}
}

func EncodeVoter(v domain.Voter) string {
	if v.Anonymous {
		return AnonymousVoterKey
	}
	return strconv.Itoa(v.AttendanceNumber)
}

func DecodeVoter(s string) (domain.Voter, error) {
	if s == AnonymousVoterKey {
		return domain.AnonymousVoter(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return domain.Voter{}, fmt.Errorf("invalid voter key %q: %w", s, err)
	}
	return domain.AttendanceVoter(n), nil
}
