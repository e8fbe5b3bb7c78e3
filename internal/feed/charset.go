package feed

import (
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// charsetReader decodes declared encodings through x/net's charset
// tables so GBK and Latin-1 feeds parse.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}
