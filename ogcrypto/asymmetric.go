package ogcrypto

import (
	"crypto/rand"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"
)

// PublicKey is a Curve25519 public key.
type PublicKey struct {
	key [KeySize]byte
}

// KeyPair is an ephemeral Curve25519 keypair. The private half never leaves
// the process.
type KeyPair struct {
	Public  PublicKey
	private [KeySize]byte
}

// GenerateKeyPair creates a new random Curve25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	kp := KeyPair{}
	copy(kp.Public.key[:], pub[:])
	copy(kp.private[:], priv[:])
	return kp, nil
}

// ParsePublicKey parses the textual `CURVE25519:base64` form of a public key.
func ParsePublicKey(text string) (PublicKey, error) {
	cs, err := ParseCryptoString(text)
	if err != nil {
		return PublicKey{}, err
	}
	if cs.Prefix != PrefixCurve25519 {
		return PublicKey{}, ErrWrongPrefix
	}
	if len(cs.Data) != KeySize {
		return PublicKey{}, ErrKeyLength
	}
	var p PublicKey
	copy(p.key[:], cs.Data)
	return p, nil
}

// AsText returns the textual form of the public key.
func (p PublicKey) AsText() string {
	return CryptoString{Prefix: PrefixCurve25519, Data: p.key[:]}.String()
}

// Encrypt seals plaintext to the public key so that only the matching
// private key can open it. An ephemeral keypair is generated per call, the
// nonce is a blake2b digest over ephemeralPK and recipientPK, and the
// ephemeral public key is prepended to the ciphertext.
func (p PublicKey) Encrypt(plaintext []byte) ([]byte, error) {
	ephemeralPub, ephemeralPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	nonce, err := sealNonce(ephemeralPub[:], p.key[:])
	if err != nil {
		return nil, err
	}

	out := box.Seal(nil, plaintext, &nonce, &p.key, ephemeralPriv)
	return append(ephemeralPub[:], out...), nil
}

// Decrypt opens a ciphertext produced by PublicKey.Encrypt for our public key.
func (kp KeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < KeySize+box.Overhead {
		return nil, ErrDecryptFailed
	}
	var ephemeralPub [KeySize]byte
	copy(ephemeralPub[:], ciphertext[:KeySize])

	nonce, err := sealNonce(ephemeralPub[:], kp.Public.key[:])
	if err != nil {
		return nil, err
	}
	plaintext, ok := box.Open(nil, ciphertext[KeySize:], &nonce, &ephemeralPub, &kp.private)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func sealNonce(ephemeralPub, recipientPub []byte) ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	h, err := blake2b.New(NonceSize, nil)
	if err != nil {
		return nonce, err
	}
	h.Write(ephemeralPub)
	h.Write(recipientPub)
	copy(nonce[:], h.Sum(nil))
	return nonce, nil
}
