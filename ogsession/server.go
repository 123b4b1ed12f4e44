package ogsession

import (
	"io"

	og "github.com/oganesson/go-og-client"
	"github.com/oganesson/go-og-client/ogcrypto"
)

// Server handles the server side of an encrypted messaging session: the
// setup handshake followed by encrypted data exchange with per-message key
// rotation.
type Server struct {
	session         *og.PacketSession
	key             ogcrypto.SecretKey
	fingerprint     string
	peerFingerprint string
}

// NewServer creates a server session over conn. The fingerprint is an opaque
// identifier delivered to the client during the handshake.
func NewServer(conn io.ReadWriter, fingerprint string) *Server {
	return NewServerWithConfig(conn, fingerprint, og.PacketSessionConfig{})
}

// NewServerWithConfig creates a server session with explicit packet session
// configuration.
func NewServerWithConfig(conn io.ReadWriter, fingerprint string, config og.PacketSessionConfig) *Server {
	return &Server{
		session:     og.NewPacketSessionWithConfig(conn, config),
		fingerprint: fingerprint,
	}
}

// Setup performs the server side of the session handshake. Once the initial
// connection is established, the client is expected to ask for the session
// encryption type, deliver an ephemeral public key and receive a freshly
// generated symmetric session key encrypted to that public key. On protocol
// violations the peer is notified with an Error attachment on a best-effort
// basis before the handshake fails.
func (s *Server) Setup() error {
	wm := og.NewWireMsg("")
	if err := wm.Read(s.session); err != nil {
		return err
	}
	if wm.Code != codeSessionSetup {
		notifyPeer(codeSessionSetup, og.ErrSessionSetup, s.session)
		return og.ErrSessionSetup
	}

	resp := og.NewWireMsg(codeSessionSetup)
	if err := resp.AddField(fieldSession, sessionTypeOg); err != nil {
		return err
	}
	if _, err := resp.Write(s.session); err != nil {
		return err
	}

	// A regular og session is encrypted but performs no identity checking:
	// the client sends an ephemeral public key, the server answers with a
	// random symmetric key sealed to it.
	if err := wm.Read(s.session); err != nil {
		return err
	}
	if wm.Code != codeSessionKey || !wm.HasField(fieldPublicKey) {
		notifyPeer(codeSessionSetup, og.ErrProtocolError, s.session)
		return og.ErrSessionSetup
	}
	peerPublic, err := ogcrypto.ParsePublicKey(wm.StringField(fieldPublicKey))
	if err != nil {
		notifyPeer(codeSessionSetup, og.ErrBadSessionKey, s.session)
		return og.ErrSessionSetup
	}
	s.peerFingerprint = wm.StringField(fieldFingerprint)

	sessionKey, err := ogcrypto.GenerateSecretKey()
	if err != nil {
		notifyPeer(codeSessionSetup, og.ErrServerError, s.session)
		return err
	}
	inner := og.NewWireMsg(codeSessionKey)
	if err := inner.AddField(fieldSecretKey, sessionKey.AsText()); err != nil {
		return err
	}
	if err := inner.AddField(fieldFingerprint, s.fingerprint); err != nil {
		return err
	}
	flat, err := inner.Flatten()
	if err != nil {
		notifyPeer(codeSessionSetup, og.ErrServerError, s.session)
		return err
	}
	ciphertext, err := peerPublic.Encrypt(flat)
	if err != nil {
		notifyPeer(codeSessionSetup, og.ErrServerError, s.session)
		return err
	}

	outer := og.NewWireMsg(codeSessionKey)
	sealed := append([]byte(ogcrypto.PrefixCurve25519+":"), ciphertext...)
	if err := outer.AddTypedField(fieldSessionKey, og.TypeBytes, sealed); err != nil {
		return err
	}
	if _, err := outer.Write(s.session); err != nil {
		return err
	}

	s.key = sessionKey
	log.Debugf("server session established, peer fingerprint %q", s.peerFingerprint)
	return nil
}

// Send delivers data to the client in an encrypted envelope and rotates the
// session key to the announced NextKey.
func (s *Server) Send(data []byte) error {
	return sendEncrypted(s.session, &s.key, data)
}

// Receive reads one encrypted envelope from the client and rotates the
// session key to the announced NextKey.
func (s *Server) Receive() ([]byte, error) {
	return receiveEncrypted(s.session, &s.key)
}

// PeerFingerprint returns the fingerprint the client announced during the
// handshake, if any.
func (s *Server) PeerFingerprint() string {
	return s.peerFingerprint
}

// Close closes the underlying packet session.
func (s *Server) Close() error {
	return s.session.Close()
}
