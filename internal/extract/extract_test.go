package extract

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Preview must never fail: whatever the input, the pipeline gets a non-empty
// string it can embed into a prompt.
func TestPreview_NeverEmpty(t *testing.T) {
	dir := t.TempDir()

	garbagePDF := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(garbagePDF, []byte("not a pdf at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	unknown := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(unknown, []byte("binary"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService()
	paths := []string{
		filepath.Join(dir, "does-not-exist.txt"),
		garbagePDF,
		unknown,
		empty,
	}
	for _, p := range paths {
		if got := svc.Preview(p); strings.TrimSpace(got) == "" {
			t.Errorf("Preview(%q) returned empty string", p)
		}
	}
}

func TestPreview_MissingFile(t *testing.T) {
	svc := NewService()
	got := svc.Preview(filepath.Join(t.TempDir(), "日報0315.txt"))
	if !strings.Contains(got, "日報0315.txt") || !strings.Contains(got, "見つかりません") {
		t.Errorf("missing-file placeholder should name the file, got %q", got)
	}
}

func TestPreview_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(path, []byte("0000"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := NewService().Preview(path)
	if !strings.Contains(got, "movie.mp4") {
		t.Error("placeholder should carry the file name")
	}
	if !strings.Contains(got, "(.mp4)") {
		t.Errorf("placeholder should name the extension, got %q", got)
	}
	if !strings.Contains(got, "更新日時") {
		t.Error("placeholder should carry file metadata")
	}
}

func TestPreview_EmptyContentPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(path, []byte("   \n\t\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := NewService().Preview(path)
	if !strings.Contains(got, "テキスト内容が見つかりませんでした") {
		t.Errorf("blank file should yield the no-content placeholder, got %q", got)
	}
}

func TestPreview_RegisterOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.custom")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService()
	svc.Register(".custom", ExtractorFunc(func(string) (string, error) {
		return "カスタム抽出結果", nil
	}))

	if got := svc.Preview(path); got != "カスタム抽出結果" {
		t.Errorf("registered extractor not used, got %q", got)
	}
}

func TestExtractText_UTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	want := "2025年3月15日の日報\n本日の業務内容です。"
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := extractText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("extractText = %q, want %q", got, want)
	}
}

func TestExtractText_ShiftJIS(t *testing.T) {
	want := "本日の業務報告：顧客訪問を実施しました。"
	encoded, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), want)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "sjis.txt")
	if err := os.WriteFile(path, []byte(encoded), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := extractText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("extractText = %q, want %q", got, want)
	}
}

func TestExtractText_SalvagesGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0xfd, 'o', 'k'}, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := extractText(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "ok") {
		t.Errorf("salvaged text should keep valid bytes, got %q", got)
	}
}

func TestExtractXLSX(t *testing.T) {
	wb := excelize.NewFile()
	for row := 1; row <= 12; row++ {
		for col := 1; col <= 12; col++ {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				t.Fatal(err)
			}
			if err := wb.SetCellValue("Sheet1", cell, fmt.Sprintf("r%dc%d", row, col)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if _, err := wb.NewSheet("Sheet2"); err != nil {
		t.Fatal(err)
	}
	if err := wb.SetCellValue("Sheet2", "A1", "集計"); err != nil {
		t.Fatal(err)
	}
	if _, err := wb.NewSheet("Sheet3"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "売上.xlsx")
	if err := wb.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	got, err := extractXLSX(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Excel名: 売上.xlsx") {
		t.Error("header missing")
	}
	if !strings.Contains(got, "シート数: 3") {
		t.Errorf("sheet count missing, got:\n%s", got)
	}
	if !strings.Contains(got, "[シート: Sheet1]") || !strings.Contains(got, "[シート: Sheet2]") {
		t.Error("first two sheets should be rendered")
	}
	if strings.Contains(got, "[シート: Sheet3]") {
		t.Error("third sheet should fall under the sheet cap")
	}
	if !strings.Contains(got, "残り 1 シートは省略されました") {
		t.Errorf("sheet omission note missing, got:\n%s", got)
	}
	if !strings.Contains(got, "r1c1 | r1c2") || !strings.Contains(got, "r10c10") {
		t.Error("cell values within the caps should appear")
	}
	if strings.Contains(got, "r11c1") {
		t.Error("rows past the cap should be omitted")
	}
	if strings.Contains(got, "r1c11") {
		t.Error("columns past the cap should be omitted")
	}
	if !strings.Contains(got, "残り 2 行は省略されました") {
		t.Errorf("row omission note missing, got:\n%s", got)
	}
	if !strings.Contains(got, "残り 2 列は省略されました") {
		t.Errorf("column omission note missing, got:\n%s", got)
	}
	if !strings.Contains(got, "集計") {
		t.Error("second sheet content missing")
	}
}

func TestExtractXLSX_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.xlsx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := extractXLSX(path); err == nil {
		t.Error("expected error for a non-workbook file")
	}
}

func TestExtractPDF_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := extractPDF(path); err == nil {
		t.Error("expected error for a non-PDF file")
	}
}

// writeZip builds a minimal OOXML-shaped archive.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractDOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "週報.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>今週の進捗</w:t></w:r></w:p>
    <w:p><w:r><w:t>案件A: </w:t></w:r><w:r><w:t>完了</w:t></w:r></w:p>
    <w:p></w:p>
  </w:body>
</w:document>`,
	})

	got, err := extractDOCX(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Word文書名: 週報.docx") {
		t.Error("header missing")
	}
	if !strings.Contains(got, "今週の進捗") {
		t.Error("first paragraph missing")
	}
	if !strings.Contains(got, "案件A: 完了") {
		t.Errorf("split runs should join into one paragraph, got:\n%s", got)
	}
}

func TestExtractDOCX_MissingDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hollow.docx")
	writeZip(t, path, map[string]string{"other.xml": "<x/>"})

	if _, err := extractDOCX(path); err == nil {
		t.Error("expected error for archive without word/document.xml")
	}
}

func TestExtractPPTX(t *testing.T) {
	slide := func(text string) string {
		return `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <a:t>` + text + `</a:t>
</p:sld>`
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "発表.pptx")
	entries := map[string]string{
		// Out of lexicographic order on purpose; output must be numeric.
		"ppt/slides/slide10.xml": slide("スライド10の内容"),
		"ppt/slides/slide2.xml":  slide("スライド2の内容"),
		"ppt/slides/slide1.xml":  slide("スライド1の内容"),
	}
	writeZip(t, path, entries)

	got, err := extractPPTX(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "スライド数: 3") {
		t.Errorf("slide count missing, got:\n%s", got)
	}
	i1 := strings.Index(got, "[スライド 1]")
	i2 := strings.Index(got, "[スライド 2]")
	i10 := strings.Index(got, "[スライド 10]")
	if i1 < 0 || i2 < 0 || i10 < 0 || !(i1 < i2 && i2 < i10) {
		t.Errorf("slides should appear in numeric order, got:\n%s", got)
	}
}

func TestExtractPPTX_SlideCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.pptx")
	entries := map[string]string{}
	for i := 1; i <= 8; i++ {
		entries[fmt.Sprintf("ppt/slides/slide%d.xml", i)] = `<p:sld xmlns:a="x"><a:t>内容</a:t></p:sld>`
	}
	writeZip(t, path, entries)

	got, err := extractPPTX(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "[スライド 6]") {
		t.Error("slides past the cap should be omitted")
	}
	if !strings.Contains(got, "残り 3 スライドは省略されました") {
		t.Errorf("omission note missing, got:\n%s", got)
	}
}
