// Package query turns a raw chat message into search keywords.
// Messages arrive as free text ("ollama質問 2025年3月15日の日報内容を教えて");
// the cleaner strips the trigger phrase and the extractor pulls out a report
// date plus whatever tokens are worth matching against filenames.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// dateRe matches Japanese-style dates like 2025年3月15日 (month/day 1-2 digits).
var dateRe = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)

// tokenCutset is trimmed from both ends of every whitespace-separated token.
const tokenCutset = `,.;:!?()[]{}"'「」。、`

// FallbackTerm is appended when a query yields too few usable keywords.
// Most questions routed at this bot are about daily reports, so 日報 is the
// safest term to widen a thin query with.
const FallbackTerm = "日報"

// stopWords are dropped from the keyword list. Mixed Japanese particles /
// question fillers and common English function words, carried over from the
// production query logs this list was tuned against.
var stopWords = map[string]struct{}{
	"について": {}, "とは": {}, "の": {}, "を": {}, "に": {}, "は": {}, "で": {},
	"が": {}, "と": {}, "から": {}, "へ": {}, "より": {}, "内容": {}, "知りたい": {},
	"あったのか": {}, "何": {}, "教えて": {}, "どのような": {}, "どんな": {},
	"ありました": {}, "提示して": {}, "内容は": {}, "報告は": {}, "報告書": {},
	"教えてください": {},
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "for": {}, "on": {}, "by": {},
}

// ReportDate is a date referenced in a query, e.g. 2025年3月15日.
type ReportDate struct {
	Year  int
	Month int
	Day   int
}

// Display renders the date the way the user typed it (no zero padding),
// e.g. "2025年3月15日". Used in prompts and fallback answers.
func (d ReportDate) Display() string {
	return fmt.Sprintf("%d年%d月%d日", d.Year, d.Month, d.Day)
}

// Compact returns the zero-padded YYYYMMDD form, the most common pattern in
// report filenames.
func (d ReportDate) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// Terms returns every filename pattern derived from the date:
// YYYYMMDD, YYYY-MM-DD, YYYY/MM/DD.
func (d ReportDate) Terms() []string {
	return []string{
		d.Compact(),
		fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day),
		fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day),
	}
}

// Keywords is the extractor output: date-derived terms first, then plain
// keyword terms.
type Keywords struct {
	Date      *ReportDate
	DateTerms []string
	Terms     []string
}

// HasDate reports whether the query referenced a date.
func (k Keywords) HasDate() bool { return k.Date != nil }

// All returns the full ordered term list, date-derived terms first.
func (k Keywords) All() []string {
	out := make([]string, 0, len(k.DateTerms)+len(k.Terms))
	out = append(out, k.DateTerms...)
	out = append(out, k.Terms...)
	return out
}

// Clean strips the trigger phrase and surrounding whitespace from a raw
// message. An empty result is valid and means an empty query.
func Clean(raw, trigger string) string {
	cleaned := raw
	if trigger != "" {
		cleaned = strings.ReplaceAll(cleaned, trigger, "")
	}
	return strings.TrimSpace(cleaned)
}

// ParseDate returns the first date mentioned in the text, or nil.
func ParseDate(text string) *ReportDate {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return &ReportDate{Year: year, Month: month, Day: day}
}

// Extract derives search keywords from a cleaned query.
// Guarantees at least one keyword when the input is non-empty: thin queries
// are widened with FallbackTerm.
func Extract(cleaned string) Keywords {
	kw := Keywords{}
	if cleaned == "" {
		return kw
	}

	rest := cleaned
	if d := ParseDate(cleaned); d != nil {
		kw.Date = d
		kw.DateTerms = d.Terms()
		// Remove the date literal so it does not leak into plain keywords.
		rest = dateRe.ReplaceAllString(rest, " ")
	}

	for _, field := range strings.Fields(rest) {
		word := strings.Trim(field, tokenCutset)
		if utf8.RuneCountInString(word) <= 1 {
			continue
		}
		if _, stop := stopWords[strings.ToLower(word)]; stop {
			continue
		}
		kw.Terms = append(kw.Terms, word)
	}

	if len(kw.Terms) < 2 && !contains(kw.Terms, FallbackTerm) {
		kw.Terms = append(kw.Terms, FallbackTerm)
	}

	return kw
}

func contains(terms []string, term string) bool {
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}
