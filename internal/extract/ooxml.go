package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DOCX and PPTX are OOXML zip containers; the visible text lives in <w:t>
// (Word) and <a:t> (PowerPoint) runs. A token walk is all that is needed for
// a preview — no layout, no styling.

const (
	docxMaxParagraphs = 50
	docxMaxChars      = 3000
	pptxMaxSlides     = 5
)

// extractDOCX previews the paragraphs of a Word document.
func extractDOCX(path string) (string, error) {
	var lines []string
	if err := fileHeader("Word文書名", path, &lines); err != nil {
		return "", err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer zr.Close()

	doc, err := openZipEntry(&zr.Reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	defer doc.Close()

	paragraphs, truncated, err := wordParagraphs(doc)
	if err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}

	lines = append(lines, "\n文書内容:")
	lines = append(lines, paragraphs...)
	if truncated {
		lines = append(lines, "...(以下省略)")
	}

	return strings.Join(lines, "\n"), nil
}

// wordParagraphs collects non-empty paragraph texts, stopping at the
// paragraph/character caps.
func wordParagraphs(r io.Reader) (paragraphs []string, truncated bool, err error) {
	dec := xml.NewDecoder(r)

	var current strings.Builder
	inText := false
	total := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(current.String())
				current.Reset()
				if text == "" {
					continue
				}
				paragraphs = append(paragraphs, text)
				total += len(text)
				if len(paragraphs) >= docxMaxParagraphs || total >= docxMaxChars {
					return paragraphs, true, nil
				}
			}
		}
	}
	return paragraphs, false, nil
}

// slideRe extracts the slide number from a pptx archive entry name.
var slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPPTX previews the first slides of a presentation.
func extractPPTX(path string) (string, error) {
	var lines []string
	if err := fileHeader("PowerPoint名", path, &lines); err != nil {
		return "", err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open presentation: %w", err)
	}
	defer zr.Close()

	type slideEntry struct {
		num  int
		file *zip.File
	}
	var slides []slideEntry
	for _, f := range zr.File {
		if m := slideRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slideEntry{num: n, file: f})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	lines = append(lines, fmt.Sprintf("スライド数: %d", len(slides)))

	maxSlides := len(slides)
	if maxSlides > pptxMaxSlides {
		maxSlides = pptxMaxSlides
	}
	for _, s := range slides[:maxSlides] {
		lines = append(lines, fmt.Sprintf("\n[スライド %d]", s.num))

		rc, err := s.file.Open()
		if err != nil {
			lines = append(lines, fmt.Sprintf("スライドの読み込みに失敗しました: %v", err))
			continue
		}
		texts, err := slideTexts(rc)
		rc.Close()
		if err != nil {
			lines = append(lines, fmt.Sprintf("スライドの解析に失敗しました: %v", err))
			continue
		}
		if len(texts) == 0 {
			lines = append(lines, "テキスト内容なし")
			continue
		}
		lines = append(lines, "内容:")
		for _, t := range texts {
			lines = append(lines, "  "+t)
		}
	}

	if len(slides) > maxSlides {
		lines = append(lines, fmt.Sprintf("\n...(残り %d スライドは省略されました)", len(slides)-maxSlides))
	}

	return strings.Join(lines, "\n"), nil
}

// slideTexts collects the text runs of a single slide.
func slideTexts(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var texts []string
	var current strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				if text := strings.TrimSpace(current.String()); text != "" {
					texts = append(texts, text)
				}
				current.Reset()
			}
		}
	}
	return texts, nil
}

func openZipEntry(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
