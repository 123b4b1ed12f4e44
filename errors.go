package og

// Error is a protocol error with a stable textual identifier. The identifier
// doubles as the wire representation carried in handshake Error attachments,
// so the values are part of the protocol and must not change.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrBadType indicates an unknown or mismatched field type.
	ErrBadType Error = "ErrBadType"
	// ErrBadValue indicates a value whose kind does not match the field type.
	ErrBadValue Error = "ErrBadValue"
	// ErrBadData indicates malformed wire data.
	ErrBadData Error = "ErrBadData"
	// ErrOutOfRange indicates an integer value that does not fit the field width.
	ErrOutOfRange Error = "ErrOutOfRange"
	// ErrSize indicates a length prefix that disagrees with the actual data.
	ErrSize Error = "ErrSize"
	// ErrEmptyData indicates missing required input.
	ErrEmptyData Error = "ErrEmptyData"
	// ErrNotFound indicates a missing attachment.
	ErrNotFound Error = "ErrNotFound"
	// ErrNetworkError indicates a dead or misbehaving stream.
	ErrNetworkError Error = "ErrNetworkError"
	// ErrMultipartSession indicates a multipart chunk with no transfer in progress.
	ErrMultipartSession Error = "ErrMultipartSession"
	// ErrInvalidMsg indicates an unexpected message at the current protocol state.
	ErrInvalidMsg Error = "ErrInvalidMsg"

	ErrSessionSetup    Error = "ErrSessionSetup"
	ErrSessionMismatch Error = "ErrSessionMismatch"
	ErrKeyError        Error = "ErrKeyError"
	ErrClientError     Error = "ErrClientError"
	ErrServerError     Error = "ErrServerError"
	ErrProtocolError   Error = "ErrProtocolError"
	ErrBadSessionKey   Error = "ErrBadSessionKey"
)
