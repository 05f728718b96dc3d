package ring

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// newDecoder returns a decoder for the named charset. Bytes that are not
// valid in it decode to U+FFFD.
func newDecoder(name string) (*encoding.Decoder, error) {
	if name == "" {
		name = DEFAULT_CHARSET
	}
	var enc, err = htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrorUnknownCharset, name)
	}
	return enc.NewDecoder(), nil
}

// decode converts a response out of the scratch buffer into a fresh slice.
// In hex mode the raw bytes are hex encoded instead of decoded.
func (l *Loop) decode(data []byte, hexMode bool) []byte {
	if hexMode {
		var encoded = make([]byte, hex.EncodedLen(len(data)))
		hex.Encode(encoded, data)
		return encoded
	}
	var out, err = l.decoder.Bytes(data)
	if err != nil {
		return append([]byte(nil), data...)
	}
	return out
}
