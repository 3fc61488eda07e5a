// Package assemble concatenates file previews into a single context blob for
// the prompt, bounded by a character budget. Files are taken in search-result
// order; whatever does not fit is reported in an omitted-files notice rather
// than silently dropped.
package assemble

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hotaket/ollamabridge/internal/search"
)

// Previewer produces preview text for a file path. Satisfied by
// extract.Service.
type Previewer interface {
	Preview(path string) string
}

// Config bounds the assembled output.
type Config struct {
	Budget     int // total character budget (runes)
	MaxFiles   int // hard cap on files per answer, regardless of budget
	MinDisplay int // below this many remaining characters, stop instead of truncating
}

const (
	DefaultBudget     = 8000
	DefaultMaxFiles   = 3
	DefaultMinDisplay = 200
)

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
	if c.MinDisplay <= 0 {
		c.MinDisplay = DefaultMinDisplay
	}
	return c
}

// Context is the assembled prompt context.
type Context struct {
	Text  string          // the blob handed to the prompt builder
	Files []search.Result // files actually included, in order
}

// Assemble builds the context blob from search results. The total length
// never exceeds cfg.Budget plus one header's worth of overhead, and at most
// cfg.MaxFiles files are included even when budget remains.
func Assemble(results []search.Result, prev Previewer, cfg Config) Context {
	cfg = cfg.withDefaults()

	if len(results) == 0 {
		return Context{}
	}

	var b strings.Builder
	banner := fmt.Sprintf("--- %d件の関連ファイルが見つかりました ---\n\n", len(results))
	b.WriteString(banner)
	total := utf8.RuneCountInString(banner)

	var included []search.Result
	for i, r := range results {
		if i >= cfg.MaxFiles {
			b.WriteString(omittedNotice(len(results) - i))
			break
		}

		remaining := cfg.Budget - total
		if remaining < cfg.MinDisplay {
			b.WriteString(omittedNotice(len(results) - i))
			break
		}

		header := fmt.Sprintf("=== ファイル %d: %s ===\n更新日時: %s\n",
			i+1, r.Name, r.ModTime.Format("2006-01-02 15:04:05"))
		headerLen := utf8.RuneCountInString(header)

		// Even split of the remaining budget across the files still in the
		// batch, so an early huge file cannot starve the rest.
		filesLeft := min(cfg.MaxFiles, len(results)) - i
		perFile := remaining / filesLeft
		previewCap := perFile - headerLen
		if previewCap < cfg.MinDisplay {
			previewCap = cfg.MinDisplay
		}
		// Never let a floor bump spill past the global budget.
		if previewCap > remaining-headerLen {
			previewCap = remaining - headerLen
		}

		preview := prev.Preview(r.Path)
		cut, truncated := truncateRunes(preview, previewCap)
		if truncated {
			cut += "...\n"
		} else {
			cut += "\n"
		}

		block := header + cut + "\n"
		b.WriteString(block)
		total += utf8.RuneCountInString(block)
		included = append(included, r)
	}

	return Context{Text: b.String(), Files: included}
}

func omittedNotice(n int) string {
	return fmt.Sprintf("\n（残り%d件のファイルは文字数制限のため表示されません）", n)
}

func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return "", s != ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
