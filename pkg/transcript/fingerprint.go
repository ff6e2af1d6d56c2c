package transcript

import (
	"encoding/hex"
	"strconv"

	"lukechampine.com/blake3"
)

// Fingerprint returns a blake3 hex digest of the word stream. Two ingestions of
// the same transcript produce the same fingerprint.
func Fingerprint(words []TimedWord) string {
	h := blake3.New(32, nil)
	buf := make([]byte, 0, 64)
	for _, w := range words {
		buf = buf[:0]
		buf = append(buf, w.Text...)
		buf = append(buf, 0)
		buf = strconv.AppendFloat(buf, w.Start, 'g', -1, 64)
		buf = append(buf, 0)
		buf = strconv.AppendFloat(buf, w.End, 'g', -1, 64)
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PlainText joins the word texts with single spaces.
func PlainText(words []TimedWord) string {
	n := 0
	for _, w := range words {
		n += len(w.Text) + 1
	}
	b := make([]byte, 0, n)
	for i, w := range words {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, w.Text...)
	}
	return string(b)
}
