package test_test

import (
	"bytes"
	"sync"
)

// FakeStream is an in-memory loopback stream for exercising packet sessions
// without a network. Everything written becomes readable from the same
// object, and every Write call is additionally recorded so tests can assert
// exact unit boundaries.
type FakeStream struct {
	mu      sync.Mutex
	Writes  [][]byte
	readBuf bytes.Buffer
}

func (s *FakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recorded := make([]byte, len(p))
	copy(recorded, p)
	s.Writes = append(s.Writes, recorded)
	return s.readBuf.Write(p)
}

func (s *FakeStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readBuf.Read(p)
}

// Feed appends raw bytes to the readable side without recording a write.
func (s *FakeStream) Feed(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readBuf.Write(p)
}
