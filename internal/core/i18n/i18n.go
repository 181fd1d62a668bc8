// Package i18n holds the user-facing strings of the service.
package i18n

import "fmt"

type Lang string

const (
	Japanese Lang = "ja"
	English  Lang = "en"
)

func (l Lang) Valid() bool {
	return l == Japanese || l == English
}

type Key string

const (
	LoadVotesFailed         Key = "load_votes_failed"
	LoadSubmissionsFailed   Key = "load_submissions_failed"
	LoadResetRequestsFailed Key = "load_reset_requests_failed"
	CreateVoteFailed        Key = "create_vote_failed"
	UpdateStatusFailed      Key = "update_status_failed"
	SubmitFailed            Key = "submit_failed"
	SubmitAnonymousFailed   Key = "submit_anonymous_failed"
	RequestResetFailed      Key = "request_reset_failed"
	ApproveResetFailed      Key = "approve_reset_failed"
	DeleteRequestFailed     Key = "delete_request_failed"
	DeleteVoteFailed        Key = "delete_vote_failed"
	SummarizeFailed         Key = "summarize_failed"
	NothingToSummarize      Key = "nothing_to_summarize"
	UnknownOption           Key = "unknown_option"
	CustomOption            Key = "custom_option"
	EmptyAnswer             Key = "empty_answer"
	ResetAlreadyRequested   Key = "reset_already_requested"
	ResetRequested          Key = "reset_requested"
)

var catalog = map[Lang]map[Key]string{
	Japanese: {
		LoadVotesFailed:         "投票データの読み込みに失敗しました。",
		LoadSubmissionsFailed:   "提出データの読み込みに失敗しました。",
		LoadResetRequestsFailed: "リセット申請の読み込みに失敗しました。",
		CreateVoteFailed:        "投票の作成に失敗しました。",
		UpdateStatusFailed:      "ステータスの更新に失敗しました。",
		SubmitFailed:            "投票の提出に失敗しました。",
		SubmitAnonymousFailed:   "匿名の投票の提出に失敗しました。",
		RequestResetFailed:      "リセット申請に失敗しました。",
		ApproveResetFailed:      "リセットの承認中にエラーが発生しました。",
		DeleteRequestFailed:     "申請の削除に失敗しました。",
		DeleteVoteFailed:        "投票の削除中にエラーが発生しました。",
		SummarizeFailed:         "AIによる要約に失敗しました。",
		NothingToSummarize:      "要約する意見がありませんでした。",
		UnknownOption:           "不明な選択肢",
		CustomOption:            "（自由記述） %s",
		EmptyAnswer:             "（空の投票）",
		ResetAlreadyRequested:   "リセット申請は既に送信済みです。",
		ResetRequested:          "投票リセットの申請を送信しました。",
	},
	English: {
		LoadVotesFailed:         "Failed to load votes.",
		LoadSubmissionsFailed:   "Failed to load submissions.",
		LoadResetRequestsFailed: "Failed to load reset requests.",
		CreateVoteFailed:        "Failed to create the vote.",
		UpdateStatusFailed:      "Failed to update the status.",
		SubmitFailed:            "Failed to submit the vote.",
		SubmitAnonymousFailed:   "Failed to submit the anonymous vote.",
		RequestResetFailed:      "Failed to request a reset.",
		ApproveResetFailed:      "An error occurred while approving the reset.",
		DeleteRequestFailed:     "Failed to delete the request.",
		DeleteVoteFailed:        "An error occurred while deleting the vote.",
		SummarizeFailed:         "AI summarization failed.",
		NothingToSummarize:      "There were no opinions to summarize.",
		UnknownOption:           "Unknown option",
		CustomOption:            "(free entry) %s",
		EmptyAnswer:             "(empty vote)",
		ResetAlreadyRequested:   "A reset request has already been sent.",
		ResetRequested:          "Your reset request has been sent.",
	},
}

// Messages resolves keys for one display language.
type Messages struct {
	lang Lang
}

// New falls back to Japanese for unknown languages.
func New(lang Lang) Messages {
	if !lang.Valid() {
		lang = Japanese
	}
	return Messages{lang: lang}
}

func (m Messages) Lang() Lang {
	return m.lang
}

func (m Messages) Get(key Key) string {
	if s, ok := catalog[m.lang][key]; ok {
		return s
	}
	return string(key)
}

func (m Messages) Format(key Key, args ...any) string {
	return fmt.Sprintf(m.Get(key), args...)
}
