package media

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

var (
	// ErrNotImage is returned when content does not sniff as an image.
	ErrNotImage = errors.New("content is not an image")
	// ErrEmpty is returned for zero-length content.
	ErrEmpty = errors.New("content is empty")
)

// DetectImage sniffs the leading bytes of r. It returns the detected MIME type,
// its canonical extension and a reader that replays the whole content.
func DetectImage(r io.Reader) (string, string, io.Reader, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", "", nil, err
	}
	if n == 0 {
		return "", "", nil, ErrEmpty
	}
	header = header[:n]

	mt := mimetype.Detect(header)
	if !strings.HasPrefix(mt.String(), "image/") {
		return mt.String(), "", nil, ErrNotImage
	}
	return mt.String(), mt.Extension(), io.MultiReader(bytes.NewReader(header), r), nil
}
