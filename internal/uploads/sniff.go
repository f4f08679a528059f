package uploads

import (
	"bufio"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches the default read limit of mimetype.
const sniffLen = 3072

// DetectContentType inspects the head of r and returns its MIME type
// together with a reader that still yields the complete stream.
func DetectContentType(r io.Reader) (string, io.Reader) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	return mimetype.Detect(head).String(), br
}
