// Package ollama is the HTTP client for a locally hosted Ollama server.
// One blocking generation request per call, fixed decoding parameters, no
// retries — when the server is down or slow the caller substitutes a canned
// fallback answer instead of surfacing the failure to the chat user.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hotaket/ollamabridge/internal/prompt"
)

// generateOptions are fixed across all requests. The seed keeps repeated
// questions reproducible; num_ctx leaves room for assembled file context.
type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k"`
	TopP        float64 `json:"top_p"`
	NumCtx      int     `json:"num_ctx"`
	Seed        int     `json:"seed"`
}

var defaultOptions = generateOptions{
	NumPredict:  1024,
	Temperature: 0.7,
	TopK:        40,
	TopP:        0.9,
	NumCtx:      4096,
	Seed:        42,
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// emptyAnswer replaces a success response whose text field came back blank.
const emptyAnswer = "申し訳ありませんが、有効な回答を生成できませんでした。"

// Client issues generation requests against one Ollama endpoint.
type Client struct {
	url     string // full generate endpoint, e.g. http://localhost:11434/api/generate
	model   string
	timeout time.Duration
	http    *http.Client
}

// New creates a client for the given generate endpoint and model.
func New(url, model string, timeout time.Duration) *Client {
	return &Client{
		url:     url,
		model:   model,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate sends one generation request and returns the generated text.
// Transport and status errors are returned for the caller to substitute a
// fallback; an empty generation is mapped to a fixed apology instead.
func (c *Client) Generate(ctx context.Context, promptText string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  promptText,
		Stream:  false,
		Options: defaultOptions,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Info("ollama.generate", "model", c.model, "prompt_chars", len(promptText))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, snippet)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if strings.TrimSpace(out.Response) == "" {
		slog.Warn("ollama.empty_response", "model", c.model)
		return emptyAnswer, nil
	}
	return out.Response, nil
}

// Ping checks whether the Ollama server is reachable by hitting its version
// endpoint with a short timeout.
func (c *Client) Ping(ctx context.Context) bool {
	url := strings.Replace(c.url, "/api/generate", "/api/version", 1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fallbackAboutOllama answers the "what is Ollama" question without the
// model, since the answer is fixed anyway.
const fallbackAboutOllama = `Ollamaは、大規模言語モデル（LLM）をローカル環境で実行するためのオープンソースフレームワークです。

主な特徴:
1. ローカル実行: インターネット接続不要で自分のコンピュータ上でAIモデルを実行できます
2. 複数モデル対応: Llama2, Llama3, Mistral, Gemmaなど様々なモデルを利用できます
3. APIインターフェース: 他のアプリケーションから簡単に利用できるRESTful APIを提供します
4. 軽量設計: 一般的なハードウェアでも動作するよう最適化されています

Ollamaを使うと、プライバシーを保ちながら、AI機能を様々なソフトウェアに統合できます。
詳細は公式サイト: https://ollama.ai/ をご覧ください。`

// Fallback returns the canned answer used when generation fails. The wording
// depends on what was asked: Ollama questions get the fixed explainer, dated
// report questions get a message naming the date, everything else a generic
// busy notice.
func Fallback(cls prompt.Class, cleanedQuery, searchPath string) string {
	if cls.AboutOllama {
		return fallbackAboutOllama
	}

	if cls.MentionsReport {
		if cls.Date != nil {
			return fmt.Sprintf("%sの日報データを取得できませんでした。サーバーの応答に問題があるか、該当する日報が検索ディレクトリ（%s）に存在しない可能性があります。時間をおいて再度お試しいただくか、システム管理者にお問い合わせください。",
				cls.Date.Display(), searchPath)
		}
		return fmt.Sprintf("日報データを取得できませんでした。具体的な日付（例：2024年10月26日）を指定して再度お試しください。検索ディレクトリ: %s", searchPath)
	}

	return fmt.Sprintf("「%s」についてのご質問ありがとうございます。ただいまOllamaサーバーの処理に時間がかかっています。少し時間をおいてから再度お試しいただくか、より具体的な質問を入力してください。", cleanedQuery)
}
