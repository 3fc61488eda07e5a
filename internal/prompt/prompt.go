// Package prompt selects and fills the text prompt sent to the model. The
// choice is a small decision table over three flags: is the user asking
// about Ollama itself, does the query reference a dated daily report, and
// did the file search find anything.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hotaket/ollamabridge/internal/query"
	"github.com/hotaket/ollamabridge/internal/search"
)

// Class is the query classification driving template selection.
type Class struct {
	AboutOllama    bool              // asking what Ollama is
	Date           *query.ReportDate // date referenced in the query, if any
	MentionsReport bool              // query talks about 日報
}

// Classify derives the classification flags from a cleaned query.
// AboutOllama is independent of search state.
func Classify(cleaned string) Class {
	lower := strings.ToLower(cleaned)
	aboutOllama := strings.Contains(lower, "ollama") &&
		(strings.Contains(cleaned, "とは") ||
			strings.Contains(cleaned, "什么") ||
			strings.Contains(lower, "what"))

	return Class{
		AboutOllama:    aboutOllama,
		Date:           query.ParseDate(cleaned),
		MentionsReport: strings.Contains(cleaned, "日報"),
	}
}

// Input carries everything the builder needs beyond the classification.
type Input struct {
	Query         string          // cleaned query
	Context       string          // assembled file context, "" when nothing found
	Files         []search.Result // files included in Context
	SearchPath    string          // shortened document root, for not-found wording
	SearchEnabled bool
}

// aboutOllamaTemplate corrects the model's recurring confusion of Ollama
// with a video platform before it answers.
const aboutOllamaTemplate = `以下の質問に正確に回答してください。Ollamaはビデオ共有プラットフォームではなく、
大規模言語モデル（LLM）をローカル環境で実行するためのオープンソースフレームワークです。

質問: %s

回答は以下のような正確な情報を含めてください:
- Ollamaは大規模言語モデルをローカルで実行するためのツール
- ローカルコンピュータでLlama、Mistral、Gemmaなどのモデルを実行できる
- プライバシーを保ちながらAI機能を利用できる
- APIを通じて他のアプリケーションから利用できる`

const reportWithContextTemplate = `以下の質問に、提供された資料の内容に基づいて具体的に回答してください。

質問: %s

### 参考資料:
%s

### 指示:
1. 上記の参考資料を精査し、質問に関連する具体的な情報を探してください。
2. 資料から得られる事実のみに基づいて回答を作成してください。
3. 日報の内容を詳細に分析し、質問に関連する重要な情報を抽出してください。
4. 回答には、情報源として参照したファイル名と日付を明記してください。
5. 資料に情報がない場合は、「資料には記載がありません」と明示してください。
6. 推測や一般的な知識による補完は行わず、資料に記載されている事実のみを使用してください。

あなたの回答は【回答】の見出しで始めてください。検索結果原文は自動的に追加されるので含めないでください。`

const reportNotFoundDatedTemplate = `以下の質問に日本語で丁寧に回答してください。

質問: %s

%sの日報データは検索ディレクトリ（%s）から見つかりませんでした。
以下のいずれかの理由が考えられます：
1. 指定された日付の日報が存在しない
2. 検索可能な場所に保存されていない
3. ファイル名が通常と異なる形式で保存されている
4. アクセス権限の問題でファイルが見つけられない

この日付の日報内容については情報がないため、お答えできません。別の日付をお試しいただくか、システム管理者にお問い合わせください。`

const reportNotFoundTemplate = `以下の質問に日本語で丁寧に回答してください。

質問: %s

ご質問の日報データは検索ディレクトリ（%s）から見つかりませんでした。具体的な日付（例：2024年10月26日）を指定すると検索できる可能性があります。
日報検索には、年月日を含めた形で質問していただくとより正確に検索できます。`

const genericWithContextTemplate = `以下の質問に対して、提供された資料の内容に基づいて詳細かつ具体的に回答してください。

質問: %s

%s

### 参考資料:
%s

### 指示:
1. 上記の参考資料を詳細に分析し、質問に対する適切な情報を抽出してください。
2. 資料から得られる具体的な事実に基づいて回答を作成してください。
3. 重要な情報、具体的な数字、日付、名前などの詳細を正確に引用してください。
4. 資料に記載されていない情報については、「この点については資料に記載がありません」と明示してください。

あなたの回答は【回答】の見出しで始めてください。検索結果原文は自動的に追加されるので含めないでください。`

const genericNotFoundTemplate = `以下の質問に日本語で丁寧に回答してください。

質問: %s

%s

上記の注意事項を踏まえて、あなたの知識に基づいて質問に回答してください。`

// Build renders the prompt for the given input and classification.
func Build(in Input, cls Class) string {
	if cls.AboutOllama {
		return fmt.Sprintf(aboutOllamaTemplate, in.Query)
	}

	found := in.Context != ""

	if !in.SearchEnabled {
		return in.Query
	}

	if cls.MentionsReport {
		if found {
			return fmt.Sprintf(reportWithContextTemplate, in.Query, in.Context)
		}
		if cls.Date != nil {
			return fmt.Sprintf(reportNotFoundDatedTemplate, in.Query, cls.Date.Display(), in.SearchPath)
		}
		return fmt.Sprintf(reportNotFoundTemplate, in.Query, in.SearchPath)
	}

	if found {
		return fmt.Sprintf(genericWithContextTemplate, in.Query, fileList(in.Files), in.Context)
	}

	return fmt.Sprintf(genericNotFoundTemplate, in.Query, NotFoundNote(cls, in.SearchPath))
}

// NotFoundNote is the notice embedded when the search came back empty.
func NotFoundNote(cls Class, searchPath string) string {
	if cls.Date != nil {
		return fmt.Sprintf("注意: %sの日報は検索ディレクトリ（%s）から見つかりませんでした。", cls.Date.Display(), searchPath)
	}
	return fmt.Sprintf("注意: 関連する日報ファイルは検索ディレクトリ（%s）から見つかりませんでした。", searchPath)
}

func fileList(files []search.Result) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("検索結果ファイル一覧:\n")
	for i, f := range files {
		fmt.Fprintf(&b, "%d. %s (更新: %s)\n", i+1, f.Name, f.ModTime.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
