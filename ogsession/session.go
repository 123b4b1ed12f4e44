package ogsession

import (
	"crypto/rand"
	"encoding/base64"

	og "github.com/oganesson/go-og-client"
	"github.com/oganesson/go-og-client/ogcrypto"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("ogsession")

// Message codes and attachment names used by the handshake and the data
// phase. All of these are wire protocol constants.
const (
	codeSessionSetup = "SessionSetup"
	codeSessionKey   = "SessionKey"
	codeOgMsg        = "OgMsg"
	codeEncMsg       = "EncMsg"

	sessionTypeOg = "og"

	fieldSession     = "Session"
	fieldPublicKey   = "PublicKey"
	fieldFingerprint = "Fingerprint"
	fieldSecretKey   = "SecretKey"
	fieldSessionKey  = "SessionKey"
	fieldPayload     = "Payload"
	fieldData        = "Data"
	fieldPadding     = "Padding"
	fieldNextKey     = "NextKey"
	fieldError       = "Error"
)

// sendWireError notifies the peer of a handshake failure. Best effort: the
// caller reports the original error regardless of whether the notification
// got through.
func sendWireError(msgCode string, wireErr og.Error, session *og.PacketSession) error {
	if msgCode == "" || wireErr == "" {
		return og.ErrEmptyData
	}
	wm := og.NewWireMsg(msgCode)
	if err := wm.AddField(fieldError, string(wireErr)); err != nil {
		return err
	}
	_, err := wm.Write(session)
	return err
}

func notifyPeer(msgCode string, wireErr og.Error, session *og.PacketSession) {
	if err := sendWireError(msgCode, wireErr, session); err != nil {
		log.Debugf("failed to notify peer of %v: %v", wireErr, err)
	}
}

// sendEncrypted wraps data in an encrypted envelope and sends it. The inner
// message announces a freshly generated NextKey; the session key rotates to
// it once the write succeeded.
func sendEncrypted(session *og.PacketSession, key *ogcrypto.SecretKey, data []byte) error {
	nextKey, err := ogcrypto.GenerateSecretKey()
	if err != nil {
		return err
	}
	padding, err := randomPadding()
	if err != nil {
		return err
	}

	inner := og.NewWireMsg(codeEncMsg)
	if err := inner.AddTypedField(fieldData, og.TypeBytes, data); err != nil {
		return err
	}
	if err := inner.AddField(fieldPadding, padding); err != nil {
		return err
	}
	if err := inner.AddField(fieldNextKey, nextKey.AsText()); err != nil {
		return err
	}
	flat, err := inner.Flatten()
	if err != nil {
		return err
	}

	ciphertext, err := key.Encrypt(flat)
	if err != nil {
		return err
	}
	outer := og.NewWireMsg(codeOgMsg)
	if err := outer.AddTypedField(fieldPayload, og.TypeBytes, ciphertext); err != nil {
		return err
	}
	if _, err := outer.Write(session); err != nil {
		return err
	}

	*key = nextKey
	return nil
}

// receiveEncrypted reads one encrypted envelope and returns the carried
// data. The session key rotates to the announced NextKey once the message
// decrypted and parsed cleanly.
func receiveEncrypted(session *og.PacketSession, key *ogcrypto.SecretKey) ([]byte, error) {
	wm := og.NewWireMsg("")
	if err := wm.Read(session); err != nil {
		return nil, err
	}
	if wm.Code != codeOgMsg || !wm.HasField(fieldPayload) {
		return nil, og.ErrInvalidMsg
	}
	payload, err := wm.Attachments[fieldPayload].AsBytes()
	if err != nil {
		return nil, og.ErrInvalidMsg
	}

	flat, err := key.Decrypt(payload)
	if err != nil {
		return nil, og.ErrKeyError
	}
	inner := og.NewWireMsg("")
	if err := inner.Unflatten(flat); err != nil {
		return nil, og.ErrInvalidMsg
	}
	if inner.Code != codeEncMsg || !inner.HasField(fieldData) || !inner.HasField(fieldNextKey) {
		return nil, og.ErrInvalidMsg
	}
	data, err := inner.Attachments[fieldData].AsBytes()
	if err != nil {
		return nil, og.ErrInvalidMsg
	}

	nextKey, err := ogcrypto.ParseSecretKey(inner.StringField(fieldNextKey))
	if err != nil {
		return nil, og.ErrKeyError
	}
	*key = nextKey
	return data, nil
}

// randomPadding returns 1 to 16 random bytes in textual encoding. Padding
// obscures the exact plaintext length of short messages.
func randomPadding() (string, error) {
	var sizeByte [1]byte
	if _, err := rand.Read(sizeByte[:]); err != nil {
		return "", err
	}
	padding := make([]byte, int(sizeByte[0]%16)+1)
	if _, err := rand.Read(padding); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(padding), nil
}
