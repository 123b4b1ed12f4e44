package ogsession

import (
	"bytes"
	"io"

	og "github.com/oganesson/go-og-client"
	"github.com/oganesson/go-og-client/ogcrypto"
)

// Client handles the client side of an encrypted messaging session.
type Client struct {
	session         *og.PacketSession
	key             ogcrypto.SecretKey
	fingerprint     string
	peerFingerprint string
}

// NewClient creates a client session over conn. The fingerprint is an opaque
// identifier announced to the server during the handshake; it may be empty.
func NewClient(conn io.ReadWriter, fingerprint string) *Client {
	return NewClientWithConfig(conn, fingerprint, og.PacketSessionConfig{})
}

// NewClientWithConfig creates a client session with explicit packet session
// configuration.
func NewClientWithConfig(conn io.ReadWriter, fingerprint string, config og.PacketSessionConfig) *Client {
	return &Client{
		session:     og.NewPacketSessionWithConfig(conn, config),
		fingerprint: fingerprint,
	}
}

// Setup performs the client side of the session handshake: request the
// session type, deliver an ephemeral public key and recover the symmetric
// session key the server sealed to it.
func (c *Client) Setup() error {
	req := og.NewWireMsg(codeSessionSetup)
	if _, err := req.Write(c.session); err != nil {
		return err
	}

	wm := og.NewWireMsg("")
	if err := wm.Read(c.session); err != nil {
		return err
	}
	if wm.Code != codeSessionSetup || wm.HasField(fieldError) {
		return og.ErrSessionSetup
	}
	if wm.StringField(fieldSession) != sessionTypeOg {
		return og.ErrSessionMismatch
	}

	keyPair, err := ogcrypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	keyMsg := og.NewWireMsg(codeSessionKey)
	if err := keyMsg.AddField(fieldPublicKey, keyPair.Public.AsText()); err != nil {
		return err
	}
	if c.fingerprint != "" {
		if err := keyMsg.AddField(fieldFingerprint, c.fingerprint); err != nil {
			return err
		}
	}
	if _, err := keyMsg.Write(c.session); err != nil {
		return err
	}

	if err := wm.Read(c.session); err != nil {
		return err
	}
	if wm.Code != codeSessionKey || wm.HasField(fieldError) {
		return og.ErrSessionSetup
	}
	if !wm.HasField(fieldSessionKey) {
		return og.ErrServerError
	}
	sealed, err := wm.Attachments[fieldSessionKey].AsBytes()
	if err != nil {
		return og.ErrServerError
	}

	// The sealed session key is the public key algorithm prefix, a colon and
	// the raw ciphertext bytes.
	idx := bytes.IndexByte(sealed, ':')
	if idx < 1 || string(sealed[:idx]) != ogcrypto.PrefixCurve25519 {
		return og.ErrServerError
	}
	flat, err := keyPair.Decrypt(sealed[idx+1:])
	if err != nil {
		return og.ErrServerError
	}

	inner := og.NewWireMsg("")
	if err := inner.Unflatten(flat); err != nil {
		return og.ErrServerError
	}
	if inner.Code != codeSessionKey || !inner.HasField(fieldSecretKey) {
		return og.ErrServerError
	}
	sessionKey, err := ogcrypto.ParseSecretKey(inner.StringField(fieldSecretKey))
	if err != nil {
		return og.ErrServerError
	}

	c.key = sessionKey
	c.peerFingerprint = inner.StringField(fieldFingerprint)
	log.Debugf("client session established, peer fingerprint %q", c.peerFingerprint)
	return nil
}

// Send delivers data to the server in an encrypted envelope and rotates the
// session key to the announced NextKey.
func (c *Client) Send(data []byte) error {
	return sendEncrypted(c.session, &c.key, data)
}

// Receive reads one encrypted envelope from the server and rotates the
// session key to the announced NextKey.
func (c *Client) Receive() ([]byte, error) {
	return receiveEncrypted(c.session, &c.key)
}

// PeerFingerprint returns the fingerprint the server announced during the
// handshake.
func (c *Client) PeerFingerprint() string {
	return c.peerFingerprint
}

// Close closes the underlying packet session.
func (c *Client) Close() error {
	return c.session.Close()
}
