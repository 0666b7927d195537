package htmlparser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// ErrEncoding is returned when bytes cannot be decoded to the declared
// or detected charset (spec §4.1 ParseError::Encoding).
var ErrEncoding = fmt.Errorf("could not decode response")

// decodeToUTF8 sniffs a BOM, falls back to a declared Content-Type
// charset, then to chardet-based detection, and returns UTF-8 bytes.
func decodeToUTF8(raw []byte, declaredCharset string) ([]byte, error) {
	if stripped, ok := stripBOM(raw); ok {
		return stripped, nil
	}

	label := declaredCharset
	if label == "" {
		label = detectCharset(raw)
	}
	if label == "" {
		label = "utf-8"
	}

	contentType := "text/html; charset=" + label
	_, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "" {
		name = label
	}

	reader, err := charset.NewReaderLabel(name, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return decoded, nil
}

// detectCharset uses chardet as a last resort when no charset is
// declared and no BOM is present.
func detectCharset(raw []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return result.Charset
}

// stripBOM recognizes a UTF-8 BOM and strips it; other BOMs are left to
// charset.NewReaderLabel.
func stripBOM(raw []byte) ([]byte, bool) {
	if len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF {
		return raw[3:], true
	}
	return nil, false
}
