package ogsession

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	og "github.com/oganesson/go-og-client"
	"github.com/oganesson/go-og-client/ogcrypto"
)

// setupPair completes a handshake between a server and client joined by an
// in-memory pipe.
func setupPair(t *testing.T, serverFingerprint string, clientFingerprint string) (*Server, *Client) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	server := NewServer(serverConn, serverFingerprint)
	client := NewClient(clientConn, clientFingerprint)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Setup()
	}()
	assert.NoError(t, client.Setup())
	assert.NoError(t, <-errCh)

	return server, client
}

func TestSessionSetup(t *testing.T) {
	server, client := setupPair(t, "abcdef", "client-1")

	assert.Equal(t, "abcdef", client.PeerFingerprint())
	assert.Equal(t, "client-1", server.PeerFingerprint())
	// both sides hold the session key the server generated
	assert.Equal(t, server.key, client.key)
	assert.NotEqual(t, ogcrypto.SecretKey{}, server.key)
}

func TestSessionSetupWithoutClientFingerprint(t *testing.T) {
	server, client := setupPair(t, "abcdef", "")

	assert.Equal(t, "abcdef", client.PeerFingerprint())
	assert.Equal(t, "", server.PeerFingerprint())
	assert.Equal(t, server.key, client.key)
}

func TestSessionDataExchange(t *testing.T) {
	server, client := setupPair(t, "abcdef", "")

	payload := []byte("0000000000")
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- client.Send(payload)
	}()

	received, err := server.Receive()
	assert.NoError(t, err)
	assert.NoError(t, <-sendErr)
	assert.Equal(t, payload, received)

	// sender rotated after the write, receiver after the read: both sides
	// now hold the NextKey announced in that message
	assert.Equal(t, client.key, server.key)
}

func TestSessionKeyRotationOverMultipleExchanges(t *testing.T) {
	server, client := setupPair(t, "abcdef", "")

	payloads := [][]byte{
		[]byte("first"),
		[]byte("second"),
		[]byte("third"),
	}
	for _, payload := range payloads {
		keyBefore := client.key

		sendErr := make(chan error, 1)
		go func() {
			sendErr <- client.Send(payload)
		}()
		received, err := server.Receive()
		assert.NoError(t, err)
		assert.NoError(t, <-sendErr)
		assert.Equal(t, payload, received)
		assert.Equal(t, client.key, server.key)
		assert.NotEqual(t, keyBefore, client.key)

		// and the other direction
		reply := append([]byte("re: "), payload...)
		go func() {
			sendErr <- server.Send(reply)
		}()
		echoed, err := client.Receive()
		assert.NoError(t, err)
		assert.NoError(t, <-sendErr)
		assert.Equal(t, reply, echoed)
		assert.Equal(t, client.key, server.key)
	}
}

func TestSessionLargePayloadExchange(t *testing.T) {
	server, client := setupPair(t, "abcdef", "")

	payload := make([]byte, 60000)
	for i := range payload {
		payload[i] = byte(i % 253)
	}

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- client.Send(payload)
	}()
	received, err := server.Receive()
	assert.NoError(t, err)
	assert.NoError(t, <-sendErr)
	assert.Equal(t, payload, received)
}

func TestServerSetupRejectsWrongOpeningCode(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	server := NewServer(serverConn, "abcdef")
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Setup()
	}()

	session := og.NewPacketSession(clientConn)
	wm := og.NewWireMsg("Bogus")
	_, err := wm.Write(session)
	assert.NoError(t, err)

	// the server notifies the peer before failing the handshake
	resp := og.NewWireMsg("")
	assert.NoError(t, resp.Read(session))
	assert.Equal(t, "SessionSetup", resp.Code)
	assert.Equal(t, string(og.ErrSessionSetup), resp.StringField("Error"))

	assert.ErrorIs(t, <-errCh, og.ErrSessionSetup)
}

func TestServerSetupRejectsMissingPublicKey(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	server := NewServer(serverConn, "abcdef")
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Setup()
	}()

	session := og.NewPacketSession(clientConn)
	wm := og.NewWireMsg("SessionSetup")
	_, err := wm.Write(session)
	assert.NoError(t, err)

	resp := og.NewWireMsg("")
	assert.NoError(t, resp.Read(session))
	assert.Equal(t, "og", resp.StringField("Session"))

	keyMsg := og.NewWireMsg("SessionKey")
	_, err = keyMsg.Write(session)
	assert.NoError(t, err)

	errMsg := og.NewWireMsg("")
	assert.NoError(t, errMsg.Read(session))
	assert.Equal(t, string(og.ErrProtocolError), errMsg.StringField("Error"))

	assert.ErrorIs(t, <-errCh, og.ErrSessionSetup)
}

func TestServerSetupRejectsInvalidPublicKey(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	server := NewServer(serverConn, "abcdef")
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Setup()
	}()

	session := og.NewPacketSession(clientConn)
	wm := og.NewWireMsg("SessionSetup")
	_, err := wm.Write(session)
	assert.NoError(t, err)

	resp := og.NewWireMsg("")
	assert.NoError(t, resp.Read(session))

	keyMsg := og.NewWireMsg("SessionKey")
	assert.NoError(t, keyMsg.AddField("PublicKey", "not a key"))
	_, err = keyMsg.Write(session)
	assert.NoError(t, err)

	errMsg := og.NewWireMsg("")
	assert.NoError(t, errMsg.Read(session))
	assert.Equal(t, string(og.ErrBadSessionKey), errMsg.StringField("Error"))

	assert.ErrorIs(t, <-errCh, og.ErrSessionSetup)
}

func TestClientSetupRejectsWrongSessionType(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	go func() {
		session := og.NewPacketSession(serverConn)
		wm := og.NewWireMsg("")
		if err := wm.Read(session); err != nil {
			return
		}
		resp := og.NewWireMsg("SessionSetup")
		_ = resp.AddField("Session", "other")
		_, _ = resp.Write(session)
	}()

	client := NewClient(clientConn, "")
	assert.ErrorIs(t, client.Setup(), og.ErrSessionMismatch)
}

func TestClientSetupRejectsErrorResponse(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	go func() {
		session := og.NewPacketSession(serverConn)
		wm := og.NewWireMsg("")
		if err := wm.Read(session); err != nil {
			return
		}
		_ = sendWireError("SessionSetup", og.ErrSessionSetup, session)
	}()

	client := NewClient(clientConn, "")
	assert.ErrorIs(t, client.Setup(), og.ErrSessionSetup)
}

func TestReceiveRejectsUnexpectedCode(t *testing.T) {
	server, client := setupPair(t, "abcdef", "")

	sendErr := make(chan error, 1)
	go func() {
		wm := og.NewWireMsg("NotAnEnvelope")
		_ = wm.AddField("x", "y")
		_, err := wm.Write(client.session)
		sendErr <- err
	}()

	_, err := server.Receive()
	assert.ErrorIs(t, err, og.ErrInvalidMsg)
	assert.NoError(t, <-sendErr)
}

func TestReceiveRejectsTamperedPayload(t *testing.T) {
	server, client := setupPair(t, "abcdef", "")

	sendErr := make(chan error, 1)
	go func() {
		wm := og.NewWireMsg("OgMsg")
		_ = wm.AddTypedField("Payload", og.TypeBytes, []byte("not a ciphertext"))
		_, err := wm.Write(client.session)
		sendErr <- err
	}()

	_, err := server.Receive()
	assert.ErrorIs(t, err, og.ErrKeyError)
	assert.NoError(t, <-sendErr)
}

func TestSendWireErrorRequiresInput(t *testing.T) {
	assert.ErrorIs(t, sendWireError("", og.ErrSessionSetup, nil), og.ErrEmptyData)
	assert.ErrorIs(t, sendWireError("SessionSetup", "", nil), og.ErrEmptyData)
}

func TestRandomPadding(t *testing.T) {
	for i := 0; i < 32; i++ {
		padding, err := randomPadding()
		assert.NoError(t, err)
		assert.NotEmpty(t, padding)
	}
}
