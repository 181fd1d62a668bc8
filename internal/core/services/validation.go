package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/go-playground/validator/v10"
)

const (
	MaxFreeTextLength     = 500
	MaxCustomOptionLength = 100
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return isDigits(fl.Field().String())
	})
	return &Validator{validate: v}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type createVoteRules struct {
	Title               string `json:"title" validate:"min=3,max=100"`
	AdminPassword       string `json:"admin_password" validate:"len=4,digits"`
	TotalExpectedVoters int    `json:"total_expected_voters" validate:"min=1"`
	Type                string `json:"vote_type" validate:"oneof=free_text multiple_choice yes_no"`
	Visibility          string `json:"visibility_setting" validate:"oneof=everyone admin_only anonymous"`
	MinCharacters       int    `json:"min_characters" validate:"min=0,max=500"`
}

// CreateVote checks the input and returns a normalized copy: blank options
// are dropped and flags that do not apply to the vote type are cleared.
func (v *Validator) CreateVote(input ports.CreateVoteInput) (ports.CreateVoteInput, error) {
	input.Title = strings.TrimSpace(input.Title)

	verr := domain.NewValidationError()
	v.collect(verr, createVoteRules{
		Title:               input.Title,
		AdminPassword:       input.AdminPassword,
		TotalExpectedVoters: input.TotalExpectedVoters,
		Type:                string(input.Type),
		Visibility:          string(input.Visibility),
		MinCharacters:       input.MinCharacters,
	})

	options := make([]string, 0, len(input.Options))
	for _, o := range input.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}

	if input.Type == domain.VoteTypeMultipleChoice {
		switch {
		case len(options) == 0:
			verr.Add("options", "at least one option is required")
		case len(options) < 2 && !input.AllowAddingOptions:
			verr.Add("options", "at least two options are required unless voters may add options")
		}
		for _, o := range options {
			if utf8.RuneCountInString(o) > MaxCustomOptionLength {
				verr.Add("options", fmt.Sprintf("options must be at most %d characters", MaxCustomOptionLength))
			}
		}
		input.Options = options
	} else {
		input.Options = nil
		input.AllowMultipleSelections = false
		input.AllowAddingOptions = false
	}

	if input.Type != domain.VoteTypeFreeText {
		input.MinCharacters = 0
	}

	if verr.HasErrors() {
		return input, verr
	}
	return input, nil
}

// Submission checks the input against the vote's type and flags and returns
// the value to store.
func (v *Validator) Submission(vote *domain.Vote, input ports.SubmissionInput) (domain.Value, error) {
	verr := domain.NewValidationError()

	if err := v.validate.Var(input.AttendanceNumber, fmt.Sprintf("min=1,max=%d", vote.TotalExpectedVoters)); err != nil {
		verr.Add("attendance_number", fmt.Sprintf("must be between 1 and %d", vote.TotalExpectedVoters))
	}

	var value domain.Value
	switch vote.Type {
	case domain.VoteTypeYesNo:
		value = v.yesNo(vote, input.Answer, verr)
	case domain.VoteTypeMultipleChoice:
		value = v.choices(vote, input.Choices, verr)
	case domain.VoteTypeFreeText:
		value = v.freeText(vote, input.Text, verr)
	}

	if verr.HasErrors() {
		return domain.Value{}, verr
	}
	return value, nil
}

func (v *Validator) yesNo(vote *domain.Vote, answer string, verr *domain.ValidationError) domain.Value {
	switch answer {
	case "":
		if !vote.AllowEmptyVotes {
			verr.Add("answer", "an answer is required")
		}
		return domain.EmptyValue()
	case domain.AnswerYes, domain.AnswerNo:
		return domain.SingleChoice(domain.Choice{OptionID: answer})
	default:
		verr.Add("answer", "must be yes or no")
		return domain.Value{}
	}
}

func (v *Validator) choices(vote *domain.Vote, choices []domain.Choice, verr *domain.ValidationError) domain.Value {
	if len(choices) == 0 {
		if !vote.AllowEmptyVotes {
			verr.Add("choices", "select at least one option")
		}
		return domain.EmptyValue()
	}
	if len(choices) > 1 && !vote.AllowMultipleSelections {
		verr.Add("choices", "only one option may be selected")
	}

	seen := make(map[domain.Choice]bool, len(choices))
	out := make([]domain.Choice, 0, len(choices))
	for _, c := range choices {
		c.Custom = strings.TrimSpace(c.Custom)
		switch {
		case c.OptionID != "":
			if _, ok := vote.Option(c.OptionID); !ok {
				verr.Add("choices", fmt.Sprintf("unknown option %q", c.OptionID))
				continue
			}
			c.Custom = ""
		case c.Custom != "":
			if !vote.AllowAddingOptions {
				verr.Add("choices", "this vote does not accept custom options")
				continue
			}
			if utf8.RuneCountInString(c.Custom) > MaxCustomOptionLength {
				verr.Add("choices", fmt.Sprintf("custom options must be at most %d characters", MaxCustomOptionLength))
				continue
			}
		default:
			verr.Add("choices", "empty choice")
			continue
		}
		if seen[c] {
			verr.Add("choices", "duplicate choice")
			continue
		}
		seen[c] = true
		out = append(out, c)
	}

	if vote.AllowMultipleSelections {
		return domain.MultiChoice(out...)
	}
	if len(out) == 0 {
		return domain.Value{}
	}
	return domain.SingleChoice(out[0])
}

func (v *Validator) freeText(vote *domain.Vote, text string, verr *domain.ValidationError) domain.Value {
	if strings.TrimSpace(text) == "" {
		if !vote.AllowEmptyVotes {
			verr.Add("text", "an answer is required")
		}
		return domain.EmptyValue()
	}
	if err := v.validate.Var(text, fmt.Sprintf("max=%d", MaxFreeTextLength)); err != nil {
		verr.Add("text", fmt.Sprintf("must be at most %d characters", MaxFreeTextLength))
	}
	if n := utf8.RuneCountInString(text); n < vote.MinCharacters {
		verr.Add("text", fmt.Sprintf("must be at least %d characters", vote.MinCharacters))
	}
	return domain.FreeText(text)
}

func (v *Validator) collect(verr *domain.ValidationError, s any) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("_", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "digits":
		return "must contain digits only"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
