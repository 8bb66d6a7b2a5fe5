package walletsig

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Signature is a detached signature as it travels in JSON.
//
// Browser wallets hand back a Uint8Array, which clients forward as an array of
// byte values; that is the canonical encoding and what SignatureFromBytes produces.
// Strings are also accepted: 0x-prefixed hex, base64 (recognised by padding or
// '+'/'/' characters), otherwise base58.
//
// The JSON value is kept as received and only decoded by Bytes, so a malformed
// signature fails verification rather than request decoding.
type Signature struct {
	raw json.RawMessage
}

// SignatureFromBytes wraps raw signature bytes in their canonical JSON form.
func SignatureFromBytes(b []byte) Signature {
	if b == nil {
		return Signature{}
	}
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	raw, _ := json.Marshal(ints)
	return Signature{raw: raw}
}

// IsZero reports whether the signature is absent or JSON null.
func (s Signature) IsZero() bool {
	raw := bytes.TrimSpace(s.raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func (s Signature) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// UnmarshalJSON stores the value undecoded; it never fails.
func (s *Signature) UnmarshalJSON(data []byte) error {
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Bytes decodes a byte-value array or an encoded string. A zero Signature
// decodes to nil.
func (s Signature) Bytes() ([]byte, error) {
	if s.IsZero() {
		return nil, nil
	}
	data := bytes.TrimSpace(s.raw)
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil, err
		}
		return decodeSignatureString(str)
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("signature must be an array of bytes: %w", err)
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("signature byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func decodeSignatureString(str string) ([]byte, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(str, "0x"); ok {
		return hex.DecodeString(rest)
	}
	if strings.ContainsAny(str, "+/=") {
		return base64.StdEncoding.DecodeString(str)
	}
	if strings.ContainsAny(str, "-_") {
		return base64.RawURLEncoding.DecodeString(str)
	}
	b, err := base58.Decode(str)
	if err != nil {
		return nil, errors.New("signature string is not hex, base64 or base58")
	}
	return b, nil
}
