package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"time"

	og "github.com/oganesson/go-og-client"
	"github.com/oganesson/go-og-client/ogsession"
	"github.com/op/go-logging"
	"github.com/rs/xid"
	"github.com/tarm/serial"
)

var log = logging.MustGetLogger("ogclient")

func main() {
	addr := flag.String("addr", "127.0.0.1:4004", "server address")
	device := flag.String("device", "", "serial device to use instead of TCP (point-to-point links)")
	baudRate := flag.Int("baud", 115200, "serial device baud rate")
	fingerprint := flag.String("fingerprint", "", "fingerprint announced to the server (default: generated)")
	payload := flag.String("send", "ping", "payload to send after the handshake")
	debug := flag.Bool("debug", false, "log raw field units")
	flag.Parse()

	level := logging.INFO
	if *debug {
		level = logging.DEBUG
	}
	log = ogsession.SetupLogging("ogclient", level)

	fp := *fingerprint
	if fp == "" {
		fp = xid.New().String()
	}

	var conn io.ReadWriteCloser
	var err error
	if *device != "" {
		conn, err = serial.OpenPort(&serial.Config{
			Name:        *device,
			Baud:        *baudRate,
			ReadTimeout: 100 * time.Millisecond,
		})
	} else {
		conn, err = net.Dial("tcp", *addr)
	}
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	client := ogsession.NewClientWithConfig(conn, fp, og.PacketSessionConfig{DebugLogRawPacketBytes: *debug})
	if err := client.Setup(); err != nil {
		log.Fatalf("session setup failed: %v", err)
	}
	log.Infof("session established, server fingerprint %q", client.PeerFingerprint())

	if err := client.Send([]byte(*payload)); err != nil {
		log.Fatalf("send failed: %v", err)
	}
	reply, err := client.Receive()
	if err != nil {
		log.Fatalf("receive failed: %v", err)
	}
	fmt.Printf("%s\n", reply)
}
