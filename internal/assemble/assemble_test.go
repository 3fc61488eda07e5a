package assemble

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hotaket/ollamabridge/internal/search"
)

// fixedPreviewer returns the same preview text for every path.
type fixedPreviewer string

func (p fixedPreviewer) Preview(string) string { return string(p) }

func makeResults(n int) []search.Result {
	results := make([]search.Result, n)
	for i := range results {
		results[i] = search.Result{
			Path:    fmt.Sprintf("/docs/日報%02d.txt", i+1),
			Name:    fmt.Sprintf("日報%02d.txt", i+1),
			ModTime: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
			Ext:     ".txt",
		}
	}
	return results
}

func TestAssemble_Empty(t *testing.T) {
	ctx := Assemble(nil, fixedPreviewer("x"), Config{})
	if ctx.Text != "" || len(ctx.Files) != 0 {
		t.Errorf("empty results should yield empty context, got %+v", ctx)
	}
}

func TestAssemble_SingleFile(t *testing.T) {
	results := makeResults(1)
	ctx := Assemble(results, fixedPreviewer("本日の業務報告です。"), Config{})

	if len(ctx.Files) != 1 {
		t.Fatalf("expected 1 included file, got %d", len(ctx.Files))
	}
	if !strings.Contains(ctx.Text, "1件の関連ファイルが見つかりました") {
		t.Error("banner missing or wrong count")
	}
	if !strings.Contains(ctx.Text, "=== ファイル 1: 日報01.txt ===") {
		t.Error("file header missing")
	}
	if !strings.Contains(ctx.Text, "本日の業務報告です。") {
		t.Error("preview text missing")
	}
	if strings.Contains(ctx.Text, "表示されません") {
		t.Error("omitted notice should not appear when everything fits")
	}
}

// The output never exceeds the budget plus one header's worth of overhead,
// no matter how large the previews are.
func TestAssemble_BudgetBound(t *testing.T) {
	huge := fixedPreviewer(strings.Repeat("あ", 50000))

	for _, budget := range []int{500, 2000, 8000} {
		for _, n := range []int{1, 2, 3, 7} {
			results := makeResults(n)
			cfg := Config{Budget: budget, MaxFiles: 3}
			ctx := Assemble(results, huge, cfg)

			// One header plus the banner and omitted notice is a generous
			// fixed overhead allowance.
			const overhead = 200
			if got := utf8.RuneCountInString(ctx.Text); got > budget+overhead {
				t.Errorf("budget=%d n=%d: output %d runes exceeds bound", budget, n, got)
			}
		}
	}
}

func TestAssemble_EvenSplitFeedsEveryFile(t *testing.T) {
	huge := fixedPreviewer(strings.Repeat("あ", 50000))
	results := makeResults(3)
	ctx := Assemble(results, huge, Config{Budget: 8000, MaxFiles: 3})

	if len(ctx.Files) != 3 {
		t.Fatalf("expected all 3 files included, got %d", len(ctx.Files))
	}
	for i := 1; i <= 3; i++ {
		header := fmt.Sprintf("=== ファイル %d:", i)
		if !strings.Contains(ctx.Text, header) {
			t.Errorf("header for file %d missing; an early huge file starved the rest", i)
		}
	}
}

// At most MaxFiles files are processed and the omitted notice names exactly
// the number left over.
func TestAssemble_MaxFilesAndOmittedNotice(t *testing.T) {
	small := fixedPreviewer("短い内容")

	for _, n := range []int{4, 5, 10} {
		results := makeResults(n)
		ctx := Assemble(results, small, Config{Budget: 8000, MaxFiles: 3})

		if len(ctx.Files) != 3 {
			t.Errorf("n=%d: expected 3 included files, got %d", n, len(ctx.Files))
		}
		want := fmt.Sprintf("残り%d件のファイルは文字数制限のため表示されません", n-3)
		if !strings.Contains(ctx.Text, want) {
			t.Errorf("n=%d: omitted notice %q missing in output", n, want)
		}
	}
}

func TestAssemble_NoNoticeWhenAllFit(t *testing.T) {
	results := makeResults(3)
	ctx := Assemble(results, fixedPreviewer("短い内容"), Config{Budget: 8000, MaxFiles: 3})
	if strings.Contains(ctx.Text, "表示されません") {
		t.Error("omitted notice should not appear for exactly MaxFiles results")
	}
}

func TestAssemble_TruncationMarker(t *testing.T) {
	huge := fixedPreviewer(strings.Repeat("あ", 50000))
	ctx := Assemble(makeResults(1), huge, Config{Budget: 1000, MaxFiles: 3})
	if !strings.Contains(ctx.Text, "...") {
		t.Error("truncated preview should carry an ellipsis marker")
	}
}

func TestAssemble_StopsBelowMinDisplay(t *testing.T) {
	// Budget so small that after the first file there is no room left.
	huge := fixedPreviewer(strings.Repeat("あ", 50000))
	results := makeResults(3)
	ctx := Assemble(results, huge, Config{Budget: 300, MaxFiles: 3, MinDisplay: 200})

	if len(ctx.Files) >= 3 {
		t.Fatalf("expected early stop, got %d files", len(ctx.Files))
	}
	omitted := 3 - len(ctx.Files)
	want := fmt.Sprintf("残り%d件", omitted)
	if !strings.Contains(ctx.Text, want) {
		t.Errorf("expected notice mentioning %q, got:\n%s", want, ctx.Text)
	}
}
