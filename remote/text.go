package remote

import (
	"bytes"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const replacement = "\uFFFD"

// toUTF8 turns an error body into text we can log and hand back to callers.
// The charset comes from the Content-Type header when it names one, otherwise
// it's detected. Bytes that still can't be decoded become U+FFFD.
func toUTF8(data []byte, contentType string) string {
	if len(data) == 0 {
		return ""
	}

	label := ""

	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = strings.ToLower(params["charset"])
	}

	if label == "" && utf8.Valid(data) {
		return string(data)
	}

	if label == "" {
		if best, err := chardet.NewTextDetector().DetectBest(data); err == nil {
			label = best.Charset
		}
	}

	reader, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return strings.ToValidUTF8(string(data), replacement)
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return strings.ToValidUTF8(string(data), replacement)
	}

	return strings.ToValidUTF8(string(decoded), replacement)
}
