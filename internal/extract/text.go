package extract

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// maxTextBytes caps how much of a plain-text file is read. Previews are
// truncated far below this anyway; the cap just keeps a stray multi-gigabyte
// log file from being slurped whole.
const maxTextBytes = 1 << 20 // 1MB

// encodingChain is tried in order for non-UTF-8 text files. The document
// root is a Japanese OneDrive folder, so legacy Windows exports are almost
// always Shift_JIS.
var encodingChain = []struct {
	name string
	enc  encoding.Encoding
}{
	{"shift_jis", japanese.ShiftJIS},
	{"euc-jp", japanese.EUCJP},
	{"iso-2022-jp", japanese.ISO2022JP},
}

// extractText reads a plain-text file, decoding with the first encoding in
// the fallback chain that succeeds. UTF-8 wins when the bytes are already
// valid.
func extractText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTextBytes))
	if err != nil {
		return "", err
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	for _, candidate := range encodingChain {
		decoded, _, err := transform.Bytes(candidate.enc.NewDecoder(), data)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded), nil
		}
	}

	// Nothing decoded cleanly; salvage what we can.
	return strings.ToValidUTF8(string(data), "�"), nil
}
