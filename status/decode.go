package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrDecode is returned when the upstream body is not valid JSON under any
// candidate encoding.
var ErrDecode = errors.New("unable to decode Icecast response payload")

// Candidate encodings in priority order. Upstream panels routinely mislabel
// their output, so the first encoding that yields valid JSON wins. A nil
// encoding means strict UTF-8 validation: the permissive UTF-8 decoder would
// swallow mojibake that the legacy encodings decode correctly. "latin1"
// follows the WHATWG alias and maps to Windows-1252.
var decoderPriorities = []struct {
	name     string
	encoding encoding.Encoding
}{
	{name: "utf-8", encoding: nil},
	{name: "iso-8859-1", encoding: charmap.ISO8859_1},
	{name: "latin1", encoding: charmap.Windows1252},
}

// decodeJSON transcodes body to UTF-8 trying each candidate encoding and
// returns the first result that parses as JSON.
func decodeJSON(body []byte) ([]byte, error) {
	for _, candidate := range decoderPriorities {
		var decoded []byte
		if candidate.encoding == nil {
			if !utf8.Valid(body) {
				continue
			}
			decoded = body
		} else {
			transcoded, _, err := transform.Bytes(candidate.encoding.NewDecoder(), body)
			if err != nil {
				continue
			}
			decoded = transcoded
		}
		decoded = bytes.TrimSpace(decoded)
		if len(decoded) == 0 {
			continue
		}
		if json.Valid(decoded) {
			return decoded, nil
		}
	}
	return nil, ErrDecode
}
