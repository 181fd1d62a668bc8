package domain

import "time"

// MaxSummaryThemes bounds the theme list returned by the summarizer.
const MaxSummaryThemes = 15

type Summary struct {
	Text         string    `json:"summary"`
	Themes       []string  `json:"themes"`
	SummarizedAt time.Time `json:"summarized_at"`
}
