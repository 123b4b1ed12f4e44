package main

import (
	"flag"
	"net"

	og "github.com/oganesson/go-og-client"
	"github.com/oganesson/go-og-client/ogsession"
	"github.com/op/go-logging"
	"github.com/rs/xid"
)

var log = logging.MustGetLogger("ogserver")

func main() {
	addr := flag.String("addr", ":4004", "listen address")
	fingerprint := flag.String("fingerprint", "", "fingerprint sent to clients (default: generated)")
	debug := flag.Bool("debug", false, "log raw field units")
	flag.Parse()

	level := logging.INFO
	if *debug {
		level = logging.DEBUG
	}
	log = ogsession.SetupLogging("ogserver", level)

	fp := *fingerprint
	if fp == "" {
		fp = xid.New().String()
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}
	log.Noticef("listening on %v, fingerprint %v", ln.Addr(), fp)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Errorf("accept failed: %v", err)
			continue
		}
		serve(conn, fp, *debug)
	}
}

// serve runs the handshake and echoes every received payload back until the
// connection dies.
func serve(conn net.Conn, fingerprint string, debug bool) {
	defer conn.Close()

	server := ogsession.NewServerWithConfig(conn, fingerprint, og.PacketSessionConfig{DebugLogRawPacketBytes: debug})
	if err := server.Setup(); err != nil {
		log.Errorf("session setup with %v failed: %v", conn.RemoteAddr(), err)
		return
	}
	log.Infof("session established with %v, peer fingerprint %q", conn.RemoteAddr(), server.PeerFingerprint())

	for {
		data, err := server.Receive()
		if err != nil {
			log.Infof("session with %v ended: %v", conn.RemoteAddr(), err)
			return
		}
		if err := server.Send(data); err != nil {
			log.Errorf("echo to %v failed: %v", conn.RemoteAddr(), err)
			return
		}
	}
}
