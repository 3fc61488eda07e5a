// Package extract produces human-readable previews of local files for prompt
// context. Every format is handled by an Extractor registered per extension;
// the Preview facade never fails — unsupported formats, missing files and
// broken documents all degrade to an explanatory placeholder so the caller
// can embed the result directly into a prompt.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by an Extractor that recognizes the extension
// but cannot handle the file (or by the facade for unknown extensions).
var ErrUnsupported = errors.New("unsupported file format")

// Extractor converts one file into preview text.
type Extractor interface {
	Extract(path string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(path string) (string, error)

func (f ExtractorFunc) Extract(path string) (string, error) { return f(path) }

// textExtensions are read natively with an encoding fallback chain.
var textExtensions = []string{
	".txt", ".md", ".csv", ".json", ".xml", ".html", ".htm", ".log",
}

// Service dispatches extraction by file extension.
type Service struct {
	byExt map[string]Extractor
}

// NewService creates a service with the default extractor set: native text
// reads, PDF, XLSX, DOCX and PPTX.
func NewService() *Service {
	s := &Service{byExt: make(map[string]Extractor)}
	for _, ext := range textExtensions {
		s.Register(ext, ExtractorFunc(extractText))
	}
	s.Register(".pdf", ExtractorFunc(extractPDF))
	s.Register(".xlsx", ExtractorFunc(extractXLSX))
	s.Register(".docx", ExtractorFunc(extractDOCX))
	s.Register(".pptx", ExtractorFunc(extractPPTX))
	return s
}

// Register binds an extractor to a dotted lowercase extension, replacing any
// previous binding.
func (s *Service) Register(ext string, e Extractor) {
	s.byExt[strings.ToLower(ext)] = e
}

// Preview returns preview text for the file at path. It always returns a
// non-empty string: errors of any kind degrade to placeholder text naming
// the file and the problem.
func (s *Service) Preview(path string) string {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("extract.stat_failed", "path", path, "error", err)
		switch {
		case os.IsNotExist(err):
			return fmt.Sprintf("ファイル '%s' が見つかりません。削除または移動された可能性があります。", name)
		case os.IsPermission(err):
			return fmt.Sprintf("ファイル '%s' へのアクセス権限がありません。システム管理者に確認してください。", name)
		default:
			return fmt.Sprintf("ファイル '%s' を読み込めませんでした: %v", name, err)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	e, ok := s.byExt[ext]
	if !ok {
		return unsupportedPlaceholder(path, info, ext)
	}

	content, err := e.Extract(path)
	if err != nil {
		slog.Warn("extract.failed", "path", path, "ext", ext, "error", err)
		if errors.Is(err, ErrUnsupported) {
			return unsupportedPlaceholder(path, info, ext)
		}
		return fmt.Sprintf("ファイル '%s' の読み込みに失敗しました: %v", name, err)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Sprintf("ファイル '%s' にテキスト内容が見つかりませんでした。", name)
	}
	return content
}

// unsupportedPlaceholder carries file metadata plus a format-unsupported
// note, so the model can at least confirm the file exists.
func unsupportedPlaceholder(path string, info os.FileInfo, ext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ファイル: %s\n", filepath.Base(path))
	fmt.Fprintf(&b, "サイズ: %.2f KB\n", float64(info.Size())/1024)
	fmt.Fprintf(&b, "更新日時: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
	b.WriteString("---------------------------------\n")
	fmt.Fprintf(&b, "このファイル形式(%s)は内容の読み込みに対応していません。", ext)
	return b.String()
}

// fileHeader is the metadata block each document extractor prepends.
func fileHeader(label, path string, lines *[]string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	*lines = append(*lines,
		fmt.Sprintf("%s: %s", label, filepath.Base(path)),
		fmt.Sprintf("ファイルサイズ: %.2f KB", float64(info.Size())/1024),
		fmt.Sprintf("最終更新日時: %s", info.ModTime().Format("2006-01-02 15:04:05")),
		"----------------------------------------",
	)
	return nil
}

// truncateRunes caps s at n runes, reporting whether anything was cut.
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
