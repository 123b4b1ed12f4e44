package og

// WireMsg is a protocol-level message: a command code paired with a map of
// named typed attachments. On the wire it is two concatenated field units,
// a msgcode followed by a map.
type WireMsg struct {
	Code        string
	Attachments map[string]DataField
}

// NewWireMsg creates a message with the given command code.
func NewWireMsg(code string) *WireMsg {
	return &WireMsg{
		Code:        code,
		Attachments: map[string]DataField{},
	}
}

// AddField attaches data to the message under the inferred narrowest type.
// A nil value removes the attachment.
func (m *WireMsg) AddField(name string, value interface{}) error {
	if name == "" {
		return ErrEmptyData
	}
	if value == nil {
		delete(m.Attachments, name)
		return nil
	}

	df := DataField{}
	if err := df.SetFromValue(value); err != nil {
		return err
	}
	m.Attachments[name] = df
	return nil
}

// AddTypedField attaches data to the message under an explicit field type.
func (m *WireMsg) AddTypedField(name string, t FieldType, value interface{}) error {
	if name == "" {
		return ErrEmptyData
	}
	df := DataField{}
	if err := df.Set(t, value); err != nil {
		return err
	}
	m.Attachments[name] = df
	return nil
}

// GetField returns the named attachment.
func (m *WireMsg) GetField(name string) (DataField, error) {
	if name == "" || len(m.Attachments) == 0 {
		return DataField{}, ErrEmptyData
	}
	df, ok := m.Attachments[name]
	if !ok {
		return DataField{}, ErrNotFound
	}
	return df, nil
}

// HasField reports whether the message has the named attachment.
func (m *WireMsg) HasField(name string) bool {
	_, ok := m.Attachments[name]
	return ok
}

// StringField returns the value of a string or msgcode attachment, or an
// empty string when the attachment is missing or of another type.
func (m *WireMsg) StringField(name string) string {
	df, ok := m.Attachments[name]
	if !ok {
		return ""
	}
	s, err := df.AsString()
	if err != nil {
		return ""
	}
	return s
}

// Flatten serializes the message into a byte string.
func (m *WireMsg) Flatten() ([]byte, error) {
	code := DataField{}
	if err := code.Set(TypeMsgCode, m.Code); err != nil {
		return nil, err
	}
	attachments := DataField{}
	if err := attachments.Set(TypeMap, m.Attachments); err != nil {
		return nil, err
	}
	return append(code.Flatten(), attachments.Flatten()...), nil
}

// Unflatten deserializes a byte string into the message. The data must hold
// exactly two top-level units, a msgcode followed by a map.
func (m *WireMsg) Unflatten(data []byte) error {
	fields, err := UnflattenAll(data)
	if err != nil {
		return err
	}
	if len(fields) != 2 || fields[0].Type != TypeMsgCode || fields[1].Type != TypeMap {
		return ErrBadData
	}

	attachments, err := fields[1].AsMap()
	if err != nil {
		return ErrBadData
	}
	m.Code = string(fields[0].Value)
	m.Attachments = attachments
	return nil
}

// Read reads one message from a packet session.
func (m *WireMsg) Read(session *PacketSession) error {
	if session == nil {
		return ErrEmptyData
	}
	packet, err := session.ReadPacket()
	if err != nil {
		return err
	}
	return m.Unflatten(packet.Value)
}

// Write sends the message over a packet session. The command code must be
// set.
func (m *WireMsg) Write(session *PacketSession) (int, error) {
	if session == nil || m.Code == "" {
		return 0, ErrEmptyData
	}
	flat, err := m.Flatten()
	if err != nil {
		return 0, err
	}
	return session.WritePacket(flat)
}
