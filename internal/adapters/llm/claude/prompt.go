package claude

import (
	"fmt"
	"strings"

	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
)

type prompt struct {
	system             string
	task               string
	titleLabel         string
	submissionsLabel   string
	toolDescription    string
	summaryDescription string
	themesDescription  string
}

var prompts = map[i18n.Lang]prompt{
	i18n.Japanese: {
		system: "あなたは、生徒たちの意見をまとめるのが得意な、経験豊富なクラスのファシリテーターです。",
		task: `以下の投票結果を分析し、日本語で要約してください。

あなたのタスク:
1. 全体像の要約: すべての意見を網羅した、中立的で公平な要約を作成してください。多様な視点がどのように分布しているかを示してください。
2. 主要なテーマの抽出: 意見の中で繰り返し現れる、あるいは重要だと思われる主要なテーマやキーワードを最大15個特定し、リストアップしてください。

結果は record_summary ツールで返し、すべてのテキストは日本語で記述してください。`,
		titleLabel:         "投票タイトル",
		submissionsLabel:   "提出された意見",
		toolDescription:    "投票結果の要約と主要なテーマを記録します。",
		summaryDescription: "提供されたすべての意見を網羅した、中立的な要約。",
		themesDescription:  "意見の中から見つかった主要なテーマやトピックのリスト（最大15個）。",
	},
	i18n.English: {
		system: "You are an experienced class facilitator who is good at bringing students' opinions together.",
		task: `Analyze the vote results below and summarize them in English.

Your tasks:
1. Overall summary: write a neutral, fair summary that covers every opinion and shows how the different viewpoints are distributed.
2. Main themes: identify up to 15 themes or keywords that recur or seem important.

Return the result with the record_summary tool.`,
		titleLabel:         "Vote title",
		submissionsLabel:   "Submitted opinions",
		toolDescription:    "Records the summary and main themes of the vote results.",
		summaryDescription: "A neutral summary covering every submitted opinion.",
		themesDescription:  "Main themes or topics found in the opinions (at most 15).",
	},
}

func promptFor(lang i18n.Lang) prompt {
	if p, ok := prompts[lang]; ok {
		return p
	}
	return prompts[i18n.Japanese]
}

func buildPrompt(p prompt, input ports.SummarizeInput) string {
	var b strings.Builder
	b.WriteString(p.task)
	fmt.Fprintf(&b, "\n\n%s: %s\n\n%s:\n", p.titleLabel, input.Title, p.submissionsLabel)
	for _, s := range input.Submissions {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return b.String()
}
