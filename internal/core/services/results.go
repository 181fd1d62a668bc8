package services

import (
	"strings"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
)

type Audience int

const (
	AudiencePublic Audience = iota
	AudienceAdmin
)

type TallyEntry struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AnswerView is one row of the individual-answer listing. AttendanceNumber is
// nil for anonymous content rows.
type AnswerView struct {
	AttendanceNumber *int      `json:"attendance_number"`
	Display          string    `json:"display"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

type Results struct {
	VoteID              string       `json:"vote_id"`
	VoteType            string       `json:"vote_type"`
	Status              string       `json:"status"`
	TotalExpectedVoters int          `json:"total_expected_voters"`
	VotedCount          int          `json:"voted_count"`
	Tally               []TallyEntry `json:"tally"`
	AnswersVisible      bool         `json:"answers_visible"`
	Answers             []AnswerView `json:"answers,omitempty"`
}

// Tally counts the labels of every non-empty answer, in first-appearance
// order. Voted stubs are not counted.
func Tally(vote *domain.Vote, subs []domain.Submission, msgs i18n.Messages) []TallyEntry {
	index := make(map[string]int)
	out := []TallyEntry{}

	add := func(label string) {
		if i, ok := index[label]; ok {
			out[i].Count++
			return
		}
		index[label] = len(out)
		out = append(out, TallyEntry{Label: label, Count: 1})
	}

	for _, sub := range subs {
		v := sub.Value
		switch v.Kind {
		case domain.ValueEmpty, domain.ValueVotedStub:
			continue
		case domain.ValueFreeText:
			add(v.Text)
		case domain.ValueSingleChoice:
			if len(v.Choices) > 0 {
				add(choiceLabel(vote, v.Choices[0], msgs))
			}
		case domain.ValueMultiChoice:
			for _, c := range v.Choices {
				add(choiceLabel(vote, c, msgs))
			}
		}
	}
	return out
}

func choiceLabel(vote *domain.Vote, c domain.Choice, msgs i18n.Messages) string {
	if c.IsCustom() {
		return msgs.Format(i18n.CustomOption, c.Custom)
	}
	if vote.Type == domain.VoteTypeYesNo {
		return c.OptionID
	}
	if opt, ok := vote.Option(c.OptionID); ok {
		return opt.Text
	}
	return msgs.Get(i18n.UnknownOption)
}

// DisplayValue renders one answer for the listing.
func DisplayValue(vote *domain.Vote, v domain.Value, msgs i18n.Messages) string {
	switch v.Kind {
	case domain.ValueFreeText:
		return v.Text
	case domain.ValueSingleChoice:
		if len(v.Choices) == 0 {
			return msgs.Get(i18n.EmptyAnswer)
		}
		return choiceLabel(vote, v.Choices[0], msgs)
	case domain.ValueMultiChoice:
		labels := make([]string, 0, len(v.Choices))
		for _, c := range v.Choices {
			labels = append(labels, choiceLabel(vote, c, msgs))
		}
		return strings.Join(labels, ", ")
	default:
		return msgs.Get(i18n.EmptyAnswer)
	}
}

// AnswersVisible applies the vote's visibility setting to an audience.
func AnswersVisible(vote *domain.Vote, audience Audience) bool {
	switch vote.Visibility {
	case domain.VisibilityEveryone:
		return true
	case domain.VisibilityAdminOnly:
		return audience == AudienceAdmin
	case domain.VisibilityAnonymous:
		// Content rows of anonymous free text votes carry no attendance
		// number, so the admin may read them.
		return audience == AudienceAdmin && vote.IsAnonymousFreeText()
	default:
		return false
	}
}

func BuildResults(vote *domain.Vote, subs []domain.Submission, audience Audience, msgs i18n.Messages) Results {
	res := Results{
		VoteID:              vote.ID.String(),
		VoteType:            string(vote.Type),
		Status:              string(vote.Status),
		TotalExpectedVoters: vote.TotalExpectedVoters,
		Tally:               Tally(vote, subs, msgs),
		AnswersVisible:      AnswersVisible(vote, audience),
	}

	for _, sub := range subs {
		if sub.Counts() {
			res.VotedCount++
		}
	}

	if !res.AnswersVisible {
		return res
	}

	res.Answers = []AnswerView{}
	for _, sub := range subs {
		if sub.Value.Kind == domain.ValueVotedStub {
			continue
		}
		view := AnswerView{
			Display:     DisplayValue(vote, sub.Value, msgs),
			SubmittedAt: sub.SubmittedAt,
		}
		if !sub.Voter.Anonymous {
			n := sub.Voter.AttendanceNumber
			view.AttendanceNumber = &n
		}
		res.Answers = append(res.Answers, view)
	}
	return res
}
