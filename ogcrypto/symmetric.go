package ogcrypto

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is byte length of both symmetric keys and Curve25519 keys.
	KeySize = 32
	// NonceSize is byte length of XSalsa20 nonces.
	NonceSize = 24
)

// SecretKey is an XSalsa20-Poly1305 symmetric key.
type SecretKey struct {
	key [KeySize]byte
}

// GenerateSecretKey creates a new random symmetric key.
func GenerateSecretKey() (SecretKey, error) {
	var k SecretKey
	if _, err := rand.Read(k.key[:]); err != nil {
		return SecretKey{}, err
	}
	return k, nil
}

// ParseSecretKey parses the textual `XSALSA20:base64` form of a symmetric key.
func ParseSecretKey(text string) (SecretKey, error) {
	cs, err := ParseCryptoString(text)
	if err != nil {
		return SecretKey{}, err
	}
	if cs.Prefix != PrefixXSalsa20 {
		return SecretKey{}, ErrWrongPrefix
	}
	if len(cs.Data) != KeySize {
		return SecretKey{}, ErrKeyLength
	}
	var k SecretKey
	copy(k.key[:], cs.Data)
	return k, nil
}

// AsText returns the textual form of the key.
func (k SecretKey) AsText() string {
	return CryptoString{Prefix: PrefixXSalsa20, Data: k.key[:]}.String()
}

// Encrypt seals plaintext with a random nonce. The nonce is prepended to the
// returned ciphertext.
func (k SecretKey) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &k.key), nil
}

// Decrypt opens a nonce-prefixed ciphertext produced by Encrypt.
func (k SecretKey) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+secretbox.Overhead {
		return nil, ErrDecryptFailed
	}
	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &k.key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
