// Package notify posts generated answers back to a Teams workflow (Logic
// Apps) webhook as an adaptive card. The receiving workflow's accepted
// payload shape was never pinned down, so on rejection the notifier retries
// once with a simpler single-block card before giving up.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const sendTimeout = 30 * time.Second

// Result reports the outcome of one delivery attempt chain. Status is
// "success" or "error"; Format names the payload shape that was accepted.
type Result struct {
	Status  string
	Code    int
	Format  string
	Message string
}

// OK reports whether delivery succeeded.
func (r Result) OK() bool { return r.Status == "success" }

type textBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Wrap     bool   `json:"wrap"`
	Size     string `json:"size,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Color    string `json:"color,omitempty"`
	IsSubtle bool   `json:"isSubtle,omitempty"`
	Spacing  string `json:"spacing,omitempty"`
}

type adaptiveCard struct {
	Type    string      `json:"type"`
	Body    []textBlock `json:"body"`
	Schema  string      `json:"$schema"`
	Version string      `json:"version"`
}

type attachment struct {
	ContentType string       `json:"contentType"`
	Content     adaptiveCard `json:"content"`
}

type workflowPayload struct {
	Body struct {
		Attachments []attachment `json:"attachments"`
	} `json:"body"`
}

// Notifier delivers answers to one workflow webhook URL.
type Notifier struct {
	url  string
	http *http.Client
}

// New creates a notifier for the given workflow URL.
func New(url string) *Notifier {
	return &Notifier{
		url:  url,
		http: &http.Client{Timeout: sendTimeout},
	}
}

// Send posts the answer card. On a non-2xx response it retries once with the
// simpler fallback shape. Never panics or returns an error — the caller
// inspects the Result.
func (n *Notifier) Send(ctx context.Context, query, answer, searchPath string) Result {
	shortPath := ShortenPath(searchPath)
	now := time.Now().Format("2006年01月02日 15:04:05")

	slog.Info("notify.send", "answer_chars", len(answer), "search_path", shortPath)

	res := n.post(ctx, cardPayload(query, answer, shortPath, now))
	if res.OK() {
		res.Format = "標準"
		return res
	}

	slog.Warn("notify.card_rejected, retrying with simple format", "code", res.Code, "body", res.Message)

	res = n.post(ctx, simplePayload(query, answer, shortPath, now))
	if res.OK() {
		res.Format = "フォールバック"
	}
	return res
}

func (n *Notifier) post(ctx context.Context, payload workflowPayload) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Status: "error", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return Result{Status: "error", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		slog.Error("notify.post_failed", "error", err)
		return Result{Status: "error", Message: err.Error()}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Status: "success", Code: resp.StatusCode}
	}
	return Result{Status: "error", Code: resp.StatusCode, Message: string(snippet)}
}

func cardPayload(query, answer, shortPath, now string) workflowPayload {
	var p workflowPayload
	p.Body.Attachments = []attachment{{
		ContentType: "application/vnd.microsoft.card.adaptive",
		Content: adaptiveCard{
			Type: "AdaptiveCard",
			Body: []textBlock{
				{Type: "TextBlock", Text: "Ollama回答", Wrap: true, Size: "Medium", Weight: "Bolder"},
				{Type: "TextBlock", Text: "質問: " + query, Wrap: true, Weight: "Bolder", Color: "Accent"},
				{Type: "TextBlock", Text: "検索対象: " + shortPath, Wrap: true, IsSubtle: true, Size: "Small"},
				{Type: "TextBlock", Text: answer, Wrap: true, Spacing: "Medium"},
				{Type: "TextBlock", Text: "回答生成時刻: " + now, Wrap: true, Size: "Small", IsSubtle: true},
			},
			Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
			Version: "1.0",
		},
	}}
	return p
}

func simplePayload(query, answer, shortPath, now string) workflowPayload {
	text := fmt.Sprintf("### Ollama回答\n\n**質問**: %s\n\n**検索対象**: %s\n\n%s\n\n*回答生成時刻: %s*",
		query, shortPath, answer, now)

	var p workflowPayload
	p.Body.Attachments = []attachment{{
		ContentType: "application/vnd.microsoft.card.adaptive",
		Content: adaptiveCard{
			Type:    "AdaptiveCard",
			Body:    []textBlock{{Type: "TextBlock", Text: text, Wrap: true}},
			Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
			Version: "1.0",
		},
	}}
	return p
}

// companyRe matches corporate OneDrive folder names like
// "OneDrive - 株式会社Example".
var companyRe = regexp.MustCompile(`OneDrive - ([^\\/]+)`)

// ShortenPath compresses a long document-root path for display in cards and
// prompts. OneDrive corporate paths get their company segment abbreviated;
// other long paths keep the drive prefix and the last two segments.
func ShortenPath(path string) string {
	if path == "" {
		return "デフォルト検索ディレクトリ"
	}
	if len(path) <= 50 {
		return path
	}

	sep := "/"
	if strings.Contains(path, `\`) {
		sep = `\`
	}
	parts := strings.Split(path, sep)

	if m := companyRe.FindStringSubmatch(path); m != nil && len(parts) > 3 {
		company := m[1]
		if runes := []rune(company); len(runes) > 10 {
			company = string(runes[:10]) + "..."
		}
		last := parts[len(parts)-3:]
		return fmt.Sprintf("OneDrive - %s%s...%s%s", company, sep, sep, strings.Join(last, sep))
	}

	if len(parts) > 3 {
		first := parts[0]
		if strings.Contains(first, ":") && len(parts) > 1 {
			first = parts[0] + sep + parts[1]
		}
		last := parts[len(parts)-2:]
		return fmt.Sprintf("%s%s...%s%s", first, sep, sep, strings.Join(last, sep))
	}
	return path
}
