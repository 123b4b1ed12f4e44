package ogcrypto

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Algorithm family prefixes used in textual key encodings. The prefix travels
// on the wire ahead of key material and ciphertexts, so the values are part
// of the protocol.
const (
	// PrefixCurve25519 identifies Curve25519 public keys and sealed-box ciphertexts.
	PrefixCurve25519 = "CURVE25519"
	// PrefixXSalsa20 identifies XSalsa20-Poly1305 symmetric keys.
	PrefixXSalsa20 = "XSALSA20"
)

var (
	ErrMalformed     = errors.New("malformed crypto string")
	ErrKeyLength     = errors.New("incorrect key length")
	ErrWrongPrefix   = errors.New("unexpected algorithm prefix")
	ErrDecryptFailed = errors.New("decrypt failed")
)

// CryptoString is key material paired with the prefix identifying its
// algorithm family. Textual form is `PREFIX:base64-data`.
type CryptoString struct {
	Prefix string
	Data   []byte
}

// ParseCryptoString parses the `PREFIX:base64-data` textual form.
func ParseCryptoString(s string) (CryptoString, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 1 || idx == len(s)-1 {
		return CryptoString{}, ErrMalformed
	}
	data, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return CryptoString{}, ErrMalformed
	}
	return CryptoString{Prefix: s[:idx], Data: data}, nil
}

// IsValid reports whether the crypto string has both a prefix and data.
func (cs CryptoString) IsValid() bool {
	return cs.Prefix != "" && len(cs.Data) > 0
}

func (cs CryptoString) String() string {
	return cs.Prefix + ":" + base64.StdEncoding.EncodeToString(cs.Data)
}
