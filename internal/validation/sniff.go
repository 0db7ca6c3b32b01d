package validation

import (
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit is how many leading bytes are inspected for content detection.
// Office documents are zip archives whose identifying entry can follow several
// stored (uncompressed) parts, so the window is well past mimetype's 3 KiB default.
const sniffLimit = 128 * 1024

func init() {
	mimetype.SetLimit(sniffLimit)
}

// sniff reports the detected content type of the stream and its total length.
// When measure is false only the header is read and size is -1.
func sniff(r io.Reader, measure bool) (mimeType string, size int64, err error) {
	header := make([]byte, sniffLimit)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", 0, err
	}
	header = header[:n]
	mimeType = baseMediaType(mimetype.Detect(header).String())

	if !measure {
		return mimeType, -1, nil
	}
	rest, err := io.Copy(io.Discard, r)
	if err != nil {
		return "", 0, err
	}
	return mimeType, int64(n) + rest, nil
}

// baseMediaType strips parameters such as "; charset=utf-8" and lowercases the result.
func baseMediaType(v string) string {
	v = strings.TrimSpace(v)
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}
