package og

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oganesson/go-og-client/internal/utils"
)

const (
	// DefaultMaxPacketSize is maximum size of a single field unit emitted by a
	// packet session, header included. Payloads that do not fit are sent as a
	// multipart sequence.
	DefaultMaxPacketSize = 16384
	// DefaultSessionTimeout is the per read/write call deadline applied to the
	// underlying stream.
	DefaultSessionTimeout = 30 * time.Second
)

// deadlineStream is subset of net.Conn the session uses to bound single
// read/write calls. Streams without deadlines (files, serial ports with their
// own timeouts) work too, they just block until the OS returns.
type deadlineStream interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// PacketSessionConfig is configuration for PacketSession
type PacketSessionConfig struct {
	// MaxPacketSize is maximum size of a single emitted field unit, header
	// included. Defaults to DefaultMaxPacketSize.
	MaxPacketSize int
	// Timeout bounds a single read or write against the stream. Zero selects
	// DefaultSessionTimeout; a negative value disables deadline handling.
	Timeout time.Duration
	// DebugLogRawPacketBytes instructs session to log all sent/received field units
	DebugLogRawPacketBytes bool
}

// PacketSession frames one logical payload as either a single packet or a
// multipartpacket/multipart/multipartfinal sequence over a byte stream, and
// reassembles on read. A session is tied to one connection and is not safe
// for concurrent use of the same direction.
type PacketSession struct {
	conn   io.ReadWriter
	config PacketSessionConfig
}

// NewPacketSession creates a session over conn with default configuration.
func NewPacketSession(conn io.ReadWriter) *PacketSession {
	return NewPacketSessionWithConfig(conn, PacketSessionConfig{})
}

// NewPacketSessionWithConfig creates a session over conn with given config.
func NewPacketSessionWithConfig(conn io.ReadWriter, config PacketSessionConfig) *PacketSession {
	if config.MaxPacketSize <= 0 {
		config.MaxPacketSize = DefaultMaxPacketSize
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultSessionTimeout
	}
	return &PacketSession{
		conn:   conn,
		config: config,
	}
}

// WritePacket sends payload as one single packet when it is shorter than
// `MaxPacketSize - 3` bytes, otherwise as a multipart sequence. It returns the total number
// of bytes handed to the stream, unit headers included.
func (s *PacketSession) WritePacket(payload []byte) (int, error) {
	if len(payload) == 0 {
		return 0, ErrEmptyData
	}

	chunkSize := s.config.MaxPacketSize - 3
	if len(payload) < chunkSize {
		return s.writeField(DataField{Type: TypeSinglePacket, Value: payload})
	}

	// The opening unit announces the exact total payload length. Every unit
	// after it carries actual payload bytes, the final one closing the
	// transfer.
	header := DataField{Type: TypeMultipartPacket, Value: encodeUnsigned(uint64(len(payload)))}
	bytesSent, err := s.writeField(header)
	if err != nil {
		return bytesSent, err
	}

	index := 0
	for index+chunkSize < len(payload) {
		n, err := s.writeField(DataField{Type: TypeMultipart, Value: payload[index : index+chunkSize]})
		bytesSent += n
		if err != nil {
			return bytesSent, err
		}
		index += chunkSize
	}

	n, err := s.writeField(DataField{Type: TypeMultipartFinal, Value: payload[index:]})
	bytesSent += n
	return bytesSent, err
}

// ReadPacket reads one logical payload from the stream. Multipart sequences
// are reassembled and returned as a synthesized singlepacket field whose
// value is bit-exact equal to the written payload.
func (s *PacketSession) ReadPacket() (DataField, error) {
	df, err := s.readField()
	if err != nil {
		return DataField{}, err
	}

	switch df.Type {
	case TypeSinglePacket:
		return df, nil
	case TypeMultipart, TypeMultipartFinal:
		return DataField{}, ErrMultipartSession
	case TypeMultipartPacket:
	default:
		return DataField{}, ErrInvalidMsg
	}

	totalSize := decodeUnsigned(df.Value)
	assembled := make([]byte, 0, totalSize)
	for {
		part, err := s.readField()
		if err != nil {
			return DataField{}, err
		}
		switch part.Type {
		case TypeMultipart:
			assembled = append(assembled, part.Value...)
			if uint64(len(assembled)) > totalSize {
				return DataField{}, ErrSize
			}
			continue
		case TypeMultipartFinal:
			assembled = append(assembled, part.Value...)
		default:
			return DataField{}, ErrBadType
		}
		break
	}

	if uint64(len(assembled)) != totalSize {
		return DataField{}, ErrSize
	}
	return DataField{Type: TypeSinglePacket, Value: assembled}, nil
}

// readField reads exactly one field unit off the stream.
func (s *PacketSession) readField() (DataField, error) {
	if ds, ok := s.conn.(deadlineStream); ok && s.config.Timeout > 0 {
		_ = ds.SetReadDeadline(time.Now().Add(s.config.Timeout))
	}

	header := make([]byte, 3)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return DataField{}, wrapStreamError("packet session read failure", err)
	}
	t := FieldType(header[0])
	if _, known := typeInfoTable[t]; !known {
		return DataField{}, ErrBadType
	}

	length := int(binary.BigEndian.Uint16(header[1:3]))
	value := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(s.conn, value); err != nil {
			return DataField{}, wrapStreamError("packet session read failure", err)
		}
	}

	df := DataField{Type: t, Value: value}
	if err := df.validate(); err != nil {
		return DataField{}, err
	}
	if s.config.DebugLogRawPacketBytes {
		fmt.Printf("# DEBUG read field unit: %v %v\n", t, utils.FormatBytes(value))
	}
	return df, nil
}

// writeField sends one field unit and returns the number of bytes written.
func (s *PacketSession) writeField(df DataField) (int, error) {
	if ds, ok := s.conn.(deadlineStream); ok && s.config.Timeout > 0 {
		_ = ds.SetWriteDeadline(time.Now().Add(s.config.Timeout))
	}

	packet := df.Flatten()
	if s.config.DebugLogRawPacketBytes {
		fmt.Printf("# DEBUG sent field unit: %v %v\n", df.Type, utils.FormatBytes(df.Value))
	}

	n, err := s.conn.Write(packet)
	if err != nil {
		return n, wrapStreamError("packet session write failure", err)
	}
	if n == 0 {
		return 0, ErrNetworkError
	}
	return n, nil
}

// Close closes the underlying stream when it supports closing.
func (s *PacketSession) Close() error {
	if c, ok := s.conn.(io.Closer); ok {
		return c.Close()
	}
	return errors.New("stream does not implement Closer interface")
}

// wrapStreamError maps peer-close, zero-length reads and deadline timeouts to
// ErrNetworkError and wraps everything else with context. After a timeout the
// session is undefined and should be closed, there is no partial-read
// recovery.
func wrapStreamError(msg string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrNetworkError
	}
	return fmt.Errorf("%s: %w", msg, err)
}
