package search

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hotaket/ollamabridge/internal/query"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func keywords(dateTerms, terms []string) query.Keywords {
	kw := query.Keywords{DateTerms: dateTerms, Terms: terms}
	if len(dateTerms) > 0 {
		kw.Date = &query.ReportDate{Year: 2025, Month: 3, Day: 15}
	}
	return kw
}

func TestSearch_KeywordMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "日報20250315.txt")
	writeFile(t, dir, "無関係.txt")

	s := New(dir, nil, 10, time.Minute)
	results := s.Search(keywords(nil, []string{"日報"}), Options{})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Name != "日報20250315.txt" {
		t.Errorf("unexpected match: %s", results[0].Name)
	}
	if results[0].Ext != ".txt" {
		t.Errorf("Ext = %q, want .txt", results[0].Ext)
	}
}

func TestSearch_DateMatchOutranksKeywordMatch(t *testing.T) {
	dir := t.TempDir()
	// Walk order is lexicographic on most systems; name the keyword-only
	// file so it would come first if ranking were walk order alone.
	writeFile(t, dir, "aaa_日報まとめ.txt")
	writeFile(t, dir, "zzz_20250315.txt")

	s := New(dir, nil, 10, time.Minute)
	results := s.Search(keywords([]string{"20250315", "2025-03-15", "2025/03/15"}, []string{"日報"}), Options{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "zzz_20250315.txt" {
		t.Errorf("date match should come first, got %v", results[0].Name)
	}
}

func TestSearch_Recursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("2025年度", "03月", "日報20250315.txt"))

	s := New(dir, nil, 10, time.Minute)
	results := s.Search(keywords([]string{"20250315"}, nil), Options{})

	if len(results) != 1 {
		t.Fatalf("expected nested file to be found, got %d results", len(results))
	}
}

func TestSearch_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "日報.txt")
	writeFile(t, dir, "日報.pdf")
	writeFile(t, dir, "日報.exe")

	s := New(dir, []string{".txt", "pdf"}, 10, time.Minute)
	results := s.Search(keywords(nil, []string{"日報"}), Options{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Ext == ".exe" {
			t.Error("extension filter let .exe through")
		}
	}
}

func TestSearch_NoTermsMatchesEverything(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt")
	writeFile(t, dir, "two.txt")

	s := New(dir, nil, 10, time.Minute)
	results := s.Search(query.Keywords{}, Options{})

	if len(results) != 2 {
		t.Errorf("no terms should match all files, got %d", len(results))
	}
}

func TestSearch_MaxResults(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"日報a.txt", "日報b.txt", "日報c.txt", "日報d.txt"} {
		writeFile(t, dir, name)
	}

	s := New(dir, nil, 2, time.Minute)
	results := s.Search(keywords(nil, []string{"日報"}), Options{})

	if len(results) != 2 {
		t.Errorf("expected cap at 2, got %d", len(results))
	}
}

func TestSearch_OptionsOverride(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"日報a.txt", "日報b.txt", "日報c.txt"} {
		writeFile(t, dir, name)
	}

	s := New(dir, nil, 10, time.Minute)
	results := s.Search(keywords(nil, []string{"日報"}), Options{MaxResults: 1})

	if len(results) != 1 {
		t.Errorf("per-request limit ignored, got %d results", len(results))
	}
}

// With no date terms the walk stops as soon as the keyword bucket is full,
// so the result set is exactly the first matches in walk order.
func TestSearch_KeywordOnlyStopsAtLimit(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a_日報.txt", "b_日報.txt", "c_日報.txt", "z_日報.txt"} {
		writeFile(t, dir, name)
	}
	writeFile(t, dir, filepath.Join("zzz_深い階層", "日報x.txt"))

	s := New(dir, nil, 2, time.Minute)
	results := s.Search(keywords(nil, []string{"日報"}), Options{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "a_日報.txt" || results[1].Name != "b_日報.txt" {
		t.Errorf("expected the first matches in walk order, got %v / %v",
			results[0].Name, results[1].Name)
	}
}

func TestSearch_CacheServesStaleUntilFlush(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "日報a.txt")

	s := New(dir, nil, 10, time.Minute)
	kw := keywords(nil, []string{"日報"})

	first := s.Search(kw, Options{})
	if len(first) != 1 {
		t.Fatalf("expected 1 result, got %d", len(first))
	}

	writeFile(t, dir, "日報b.txt")

	cached := s.Search(kw, Options{})
	if len(cached) != 1 {
		t.Errorf("expected cached result set of 1, got %d", len(cached))
	}

	s.Flush()
	fresh := s.Search(kw, Options{})
	if len(fresh) != 2 {
		t.Errorf("expected 2 results after flush, got %d", len(fresh))
	}
}

func TestSearch_MissingRootReturnsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"), nil, 10, time.Minute)
	results := s.Search(keywords(nil, []string{"日報"}), Options{})
	if len(results) != 0 {
		t.Errorf("expected empty result list, got %d", len(results))
	}
}
