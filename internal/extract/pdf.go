package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

const (
	pdfMaxPages     = 3
	pdfPageMaxChars = 1000
)

// extractPDF renders the first few pages of a PDF as text via MuPDF.
func extractPDF(path string) (string, error) {
	var lines []string
	if err := fileHeader("PDF名", path, &lines); err != nil {
		return "", err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	lines = append(lines, fmt.Sprintf("ページ数: %d", pageCount))

	maxPages := pageCount
	if maxPages > pdfMaxPages {
		maxPages = pdfMaxPages
	}
	for i := 0; i < maxPages; i++ {
		lines = append(lines, fmt.Sprintf("\n[ページ %d]", i+1))
		text, err := doc.Text(i)
		if err != nil {
			lines = append(lines, fmt.Sprintf("ページの読み込みに失敗しました: %v", err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			lines = append(lines, "ページにテキストが見つかりません")
			continue
		}
		if cut, truncated := truncateRunes(text, pdfPageMaxChars); truncated {
			lines = append(lines, cut+"...(続く)")
		} else {
			lines = append(lines, text)
		}
	}

	if pageCount > maxPages {
		lines = append(lines, fmt.Sprintf("\n...(残り %d ページは省略されました)", pageCount-maxPages))
	}

	return strings.Join(lines, "\n"), nil
}
