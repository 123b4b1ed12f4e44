package og

import (
	"encoding/binary"
	"math"
	"sort"
)

// FieldType identifies the payload encoding of a single field unit. The
// numeric values are part of the wire format and must not change.
type FieldType uint8

const (
	TypeUnknown FieldType = 0
	TypeInt8    FieldType = 1
	TypeInt16   FieldType = 2
	TypeInt32   FieldType = 3
	TypeInt64   FieldType = 4
	TypeUint8   FieldType = 5
	TypeUint16  FieldType = 6
	TypeUint32  FieldType = 7
	TypeUint64  FieldType = 8
	TypeString  FieldType = 9
	TypeBool    FieldType = 10
	TypeFloat32 FieldType = 11
	TypeFloat64 FieldType = 12
	TypeBytes   FieldType = 13
	TypeMap     FieldType = 14
	// TypeMsgCode values are strings, but they need to be different from the
	// string type for clarity
	TypeMsgCode FieldType = 15

	TypeSinglePacket    FieldType = 21
	TypeMultipartPacket FieldType = 22
	TypeMultipart       FieldType = 23
	TypeMultipartFinal  FieldType = 24
)

// MaxValueSize is the maximum length of a single field unit value. Longer
// string and byte values are truncated at encoding time.
const MaxValueSize = 65535

type typeInfo struct {
	name string
	// size is value size in bytes for fixed size types, -1 for variable size types
	size int
}

var typeInfoTable = map[FieldType]typeInfo{
	TypeInt8:            {name: "int8", size: 1},
	TypeInt16:           {name: "int16", size: 2},
	TypeInt32:           {name: "int32", size: 4},
	TypeInt64:           {name: "int64", size: 8},
	TypeUint8:           {name: "uint8", size: 1},
	TypeUint16:          {name: "uint16", size: 2},
	TypeUint32:          {name: "uint32", size: 4},
	TypeUint64:          {name: "uint64", size: 8},
	TypeString:          {name: "string", size: -1},
	TypeBool:            {name: "bool", size: 1},
	TypeFloat32:         {name: "float32", size: 4},
	TypeFloat64:         {name: "float64", size: 8},
	TypeBytes:           {name: "bytes", size: -1},
	TypeMap:             {name: "map", size: -1},
	TypeMsgCode:         {name: "msgcode", size: -1},
	TypeSinglePacket:    {name: "singlepacket", size: -1},
	TypeMultipartPacket: {name: "multipartpacket", size: -1},
	TypeMultipart:       {name: "multipart", size: -1},
	TypeMultipartFinal:  {name: "multipartfinal", size: -1},
}

func (t FieldType) String() string {
	info, ok := typeInfoTable[t]
	if !ok {
		return "unknown"
	}
	return info.name
}

// FieldTypeFromName returns the field type matching given textual name.
// TypeUnknown is returned for names outside the registry.
func FieldTypeFromName(name string) FieldType {
	for t, info := range typeInfoTable {
		if info.name == name {
			return t
		}
	}
	return TypeUnknown
}

// checkIntRange reports whether value fits in a signed integer of the given bit size.
func checkIntRange(value int64, bits uint) bool {
	if bits >= 64 {
		return true
	}
	intMin := -(int64(1) << (bits - 1))
	intMax := int64(1)<<(bits-1) - 1
	return value >= intMin && value <= intMax
}

// checkUintRange reports whether value fits in an unsigned integer of the given bit size.
func checkUintRange(value uint64, bits uint) bool {
	if bits >= 64 {
		return true
	}
	return value <= uint64(1)<<bits-1
}

// intValue extracts value as int64. ok reports whether value is of integer
// kind at all, fits whether it is representable as int64.
func intValue(value interface{}) (v int64, ok bool, fits bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true, true
	case int8:
		return int64(n), true, true
	case int16:
		return int64(n), true, true
	case int32:
		return int64(n), true, true
	case int64:
		return n, true, true
	case uint:
		return int64(n), true, uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true, true
	case uint16:
		return int64(n), true, true
	case uint32:
		return int64(n), true, true
	case uint64:
		return int64(n), true, n <= math.MaxInt64
	}
	return 0, false, false
}

// uintValue extracts value as uint64. ok reports whether value is of integer
// kind at all, fits whether it is non-negative.
func uintValue(value interface{}) (v uint64, ok bool, fits bool) {
	switch n := value.(type) {
	case int:
		return uint64(n), true, n >= 0
	case int8:
		return uint64(n), true, n >= 0
	case int16:
		return uint64(n), true, n >= 0
	case int32:
		return uint64(n), true, n >= 0
	case int64:
		return uint64(n), true, n >= 0
	case uint:
		return uint64(n), true, true
	case uint8:
		return uint64(n), true, true
	case uint16:
		return uint64(n), true, true
	case uint32:
		return uint64(n), true, true
	case uint64:
		return n, true, true
	}
	return 0, false, false
}

func floatValue(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// DataField is a single typed value with its canonical encoded form. It
// serializes to a `tag + uint16 length + value` unit, the foundation all
// higher protocol layers are built from.
type DataField struct {
	Type  FieldType
	Value []byte
}

// Set encodes value under the given field type. Unknown types return
// ErrBadType, kind mismatches ErrBadValue and integers that do not fit the
// type width ErrOutOfRange. String and byte values are truncated to
// MaxValueSize. The field is only modified on success.
func (f *DataField) Set(t FieldType, value interface{}) error {
	info, known := typeInfoTable[t]
	if !known {
		return ErrBadType
	}

	switch t {
	case TypeString, TypeMsgCode:
		s, ok := value.(string)
		if !ok {
			return ErrBadValue
		}
		f.Type, f.Value = t, truncateValue([]byte(s))
	case TypeBytes, TypeSinglePacket, TypeMultipart, TypeMultipartFinal:
		b, ok := value.([]byte)
		if !ok {
			return ErrBadValue
		}
		f.Type, f.Value = t, truncateValue(b)
	case TypeBool:
		b, ok := value.(bool)
		if !ok {
			return ErrBadValue
		}
		encoded := []byte{0}
		if b {
			encoded[0] = 1
		}
		f.Type, f.Value = t, encoded
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		v, ok, fits := intValue(value)
		if !ok {
			return ErrBadValue
		}
		if !fits || !checkIntRange(v, uint(info.size)*8) {
			return ErrOutOfRange
		}
		f.Type, f.Value = t, encodeBigEndian(uint64(v), info.size)
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		v, ok, fits := uintValue(value)
		if !ok {
			return ErrBadValue
		}
		if !fits || !checkUintRange(v, uint(info.size)*8) {
			return ErrOutOfRange
		}
		f.Type, f.Value = t, encodeBigEndian(v, info.size)
	case TypeFloat32:
		v, ok := floatValue(value)
		if !ok {
			return ErrBadValue
		}
		encoded := make([]byte, 4)
		binary.BigEndian.PutUint32(encoded, math.Float32bits(float32(v)))
		f.Type, f.Value = t, encoded
	case TypeFloat64:
		v, ok := floatValue(value)
		if !ok {
			return ErrBadValue
		}
		encoded := make([]byte, 8)
		binary.BigEndian.PutUint64(encoded, math.Float64bits(v))
		f.Type, f.Value = t, encoded
	case TypeMap:
		m, err := normalizeMap(value)
		if err != nil {
			return err
		}
		encoded, err := encodeMap(m)
		if err != nil {
			return err
		}
		f.Type, f.Value = t, encoded
	case TypeMultipartPacket:
		v, ok, fits := uintValue(value)
		if !ok {
			return ErrBadValue
		}
		if !fits {
			return ErrOutOfRange
		}
		f.Type, f.Value = t, encodeUnsigned(v)
	default:
		return ErrBadType
	}
	return nil
}

// SetFromValue encodes value under the narrowest type that can represent it.
// Integers get the smallest signed width that holds the value, or the
// smallest unsigned width when no signed one does. Unsupported kinds return
// ErrBadType.
func (f *DataField) SetFromValue(value interface{}) error {
	switch v := value.(type) {
	case string:
		return f.Set(TypeString, v)
	case []byte:
		return f.Set(TypeBytes, v)
	case bool:
		return f.Set(TypeBool, v)
	case float32:
		return f.Set(TypeFloat64, float64(v))
	case float64:
		return f.Set(TypeFloat64, v)
	case map[string]DataField:
		return f.Set(TypeMap, v)
	case map[string]interface{}:
		return f.Set(TypeMap, v)
	}

	v, ok, fits := intValue(value)
	if !ok {
		return ErrBadType
	}
	if !fits {
		// only unsigned kinds larger than MaxInt64 end up here
		u, _, _ := uintValue(value)
		return f.Set(TypeUint64, u)
	}
	switch {
	case checkIntRange(v, 8):
		return f.Set(TypeInt8, v)
	case checkIntRange(v, 16):
		return f.Set(TypeInt16, v)
	case checkIntRange(v, 32):
		return f.Set(TypeInt32, v)
	default:
		return f.Set(TypeInt64, v)
	}
}

// Get decodes the field into its native value: string for string/msgcode,
// []byte for byte-array types, int64/uint64/float64 for numerics, bool for
// bool and map[string]DataField for maps.
func (f DataField) Get() (interface{}, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	switch f.Type {
	case TypeString, TypeMsgCode:
		return string(f.Value), nil
	case TypeBytes, TypeSinglePacket, TypeMultipart, TypeMultipartFinal:
		return f.Value, nil
	case TypeBool:
		return f.Value[0] == 1, nil
	case TypeInt8:
		return int64(int8(f.Value[0])), nil
	case TypeInt16:
		return int64(int16(binary.BigEndian.Uint16(f.Value))), nil
	case TypeInt32:
		return int64(int32(binary.BigEndian.Uint32(f.Value))), nil
	case TypeInt64:
		return int64(binary.BigEndian.Uint64(f.Value)), nil
	case TypeUint8:
		return uint64(f.Value[0]), nil
	case TypeUint16:
		return uint64(binary.BigEndian.Uint16(f.Value)), nil
	case TypeUint32:
		return uint64(binary.BigEndian.Uint32(f.Value)), nil
	case TypeUint64:
		return binary.BigEndian.Uint64(f.Value), nil
	case TypeFloat32:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(f.Value))), nil
	case TypeFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(f.Value)), nil
	case TypeMap:
		return decodeMap(f.Value)
	case TypeMultipartPacket:
		return decodeUnsigned(f.Value), nil
	}
	return nil, ErrBadType
}

// AsString returns the value of a string or msgcode field.
func (f DataField) AsString() (string, error) {
	switch f.Type {
	case TypeString, TypeMsgCode:
		return string(f.Value), nil
	}
	return "", ErrBadType
}

// AsBytes returns the value of a byte-array field.
func (f DataField) AsBytes() ([]byte, error) {
	switch f.Type {
	case TypeBytes, TypeSinglePacket, TypeMultipart, TypeMultipartFinal:
		return f.Value, nil
	}
	return nil, ErrBadType
}

// AsInt returns the value of a signed integer field.
func (f DataField) AsInt() (int64, error) {
	switch f.Type {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		v, err := f.Get()
		if err != nil {
			return 0, err
		}
		return v.(int64), nil
	}
	return 0, ErrBadType
}

// AsUint returns the value of an unsigned integer or multipartpacket field.
func (f DataField) AsUint() (uint64, error) {
	switch f.Type {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64, TypeMultipartPacket:
		v, err := f.Get()
		if err != nil {
			return 0, err
		}
		return v.(uint64), nil
	}
	return 0, ErrBadType
}

// AsBool returns the value of a bool field.
func (f DataField) AsBool() (bool, error) {
	if f.Type != TypeBool {
		return false, ErrBadType
	}
	if err := f.validate(); err != nil {
		return false, err
	}
	return f.Value[0] == 1, nil
}

// AsFloat returns the value of a float field.
func (f DataField) AsFloat() (float64, error) {
	switch f.Type {
	case TypeFloat32, TypeFloat64:
		v, err := f.Get()
		if err != nil {
			return 0, err
		}
		return v.(float64), nil
	}
	return 0, ErrBadType
}

// AsMap returns the decoded entries of a map field.
func (f DataField) AsMap() (map[string]DataField, error) {
	if f.Type != TypeMap {
		return nil, ErrBadType
	}
	return decodeMap(f.Value)
}

// Flatten serializes the field to its wire unit: tag, big-endian uint16
// length and the value bytes.
func (f DataField) Flatten() []byte {
	length := len(f.Value)
	if length > MaxValueSize {
		length = MaxValueSize
	}
	out := make([]byte, 3+length)
	out[0] = byte(f.Type)
	binary.BigEndian.PutUint16(out[1:3], uint16(length))
	copy(out[3:], f.Value[:length])
	return out
}

// Unflatten deserializes a single field unit. The instance is only modified
// after the payload validated cleanly under the unit's tag.
func (f *DataField) Unflatten(data []byte) error {
	if len(data) < 4 {
		return ErrBadData
	}
	t := FieldType(data[0])
	if _, known := typeInfoTable[t]; !known {
		return ErrBadType
	}
	length := int(binary.BigEndian.Uint16(data[1:3]))
	rest := data[3:]
	if len(rest) != length {
		return ErrSize
	}

	value := make([]byte, length)
	copy(value, rest)
	candidate := DataField{Type: t, Value: value}
	if err := candidate.validate(); err != nil {
		return err
	}
	*f = candidate
	return nil
}

// FlatSize returns the number of bytes the field occupies when serialized,
// or -1 for an unknown type.
func (f DataField) FlatSize() int {
	info, known := typeInfoTable[f.Type]
	if !known {
		return -1
	}
	if info.size >= 0 {
		return 3 + info.size
	}
	length := len(f.Value)
	if length > MaxValueSize {
		length = MaxValueSize
	}
	return 3 + length
}

// IsValid reports whether the stored value decodes cleanly under the field type.
func (f DataField) IsValid() bool {
	return f.validate() == nil
}

// validate checks the stored encoded value against the field type. It returns
// ErrBadType for unknown types and ErrBadValue for payloads that do not
// decode under the type.
func (f DataField) validate() error {
	info, known := typeInfoTable[f.Type]
	if !known {
		return ErrBadType
	}
	if info.size >= 0 {
		if len(f.Value) != info.size {
			return ErrBadValue
		}
		if f.Type == TypeBool && f.Value[0] > 1 {
			return ErrBadValue
		}
		return nil
	}

	if len(f.Value) > MaxValueSize {
		return ErrBadValue
	}
	switch f.Type {
	case TypeMap:
		if _, err := decodeMap(f.Value); err != nil {
			return ErrBadValue
		}
	case TypeMultipartPacket:
		// total length announcement, big-endian unsigned of 1 to 8 bytes
		if len(f.Value) < 1 || len(f.Value) > 8 {
			return ErrBadValue
		}
	}
	return nil
}

// UnflattenAll parses a byte buffer as a concatenation of field units.
func UnflattenAll(data []byte) ([]DataField, error) {
	fields := make([]DataField, 0, 4)
	for index := 0; index < len(data); {
		if len(data)-index < 3 {
			return nil, ErrBadData
		}
		t := FieldType(data[index])
		if _, known := typeInfoTable[t]; !known {
			return nil, ErrBadType
		}
		length := int(binary.BigEndian.Uint16(data[index+1 : index+3]))
		end := index + 3 + length
		if end > len(data) {
			return nil, ErrSize
		}

		value := make([]byte, length)
		copy(value, data[index+3:end])
		df := DataField{Type: t, Value: value}
		if err := df.validate(); err != nil {
			return nil, err
		}
		fields = append(fields, df)
		index = end
	}
	return fields, nil
}

func truncateValue(b []byte) []byte {
	length := len(b)
	if length > MaxValueSize {
		length = MaxValueSize
	}
	out := make([]byte, length)
	copy(out, b)
	return out
}

func encodeBigEndian(v uint64, size int) []byte {
	out := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// encodeUnsigned encodes v big-endian in the narrowest of 2, 4 or 8 bytes
// that holds it. Used for multipartpacket total length announcements.
func encodeUnsigned(v uint64) []byte {
	switch {
	case v <= math.MaxUint16:
		return encodeBigEndian(v, 2)
	case v <= math.MaxUint32:
		return encodeBigEndian(v, 4)
	default:
		return encodeBigEndian(v, 8)
	}
}

func decodeUnsigned(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func normalizeMap(value interface{}) (map[string]DataField, error) {
	switch m := value.(type) {
	case map[string]DataField:
		return m, nil
	case map[string]interface{}:
		out := make(map[string]DataField, len(m))
		for k, raw := range m {
			df := DataField{}
			if err := df.SetFromValue(raw); err != nil {
				return nil, err
			}
			out[k] = df
		}
		return out, nil
	}
	return nil, ErrBadValue
}

// encodeMap serializes map entries as a leading uint16 entry-count field
// followed by alternating string key and value units. Keys are emitted in
// sorted order so the encoding is deterministic. Nested maps are disallowed.
func encodeMap(m map[string]DataField) ([]byte, error) {
	if len(m) > math.MaxUint16 {
		return nil, ErrBadData
	}
	count := DataField{}
	if err := count.Set(TypeUint16, len(m)); err != nil {
		return nil, err
	}
	out := count.Flatten()

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "" {
			return nil, ErrBadValue
		}
		v := m[k]
		if v.Type == TypeMap {
			return nil, ErrBadValue
		}
		if err := v.validate(); err != nil {
			return nil, err
		}
		key := DataField{}
		if err := key.Set(TypeString, k); err != nil {
			return nil, err
		}
		out = append(out, key.Flatten()...)
		out = append(out, v.Flatten()...)
	}
	return out, nil
}

// decodeMap is the inverse of encodeMap. Duplicate keys resolve
// last-writer-wins, anything structurally off returns ErrBadData.
func decodeMap(data []byte) (map[string]DataField, error) {
	fields, err := UnflattenAll(data)
	if err != nil {
		return nil, ErrBadData
	}
	if len(fields) == 0 || fields[0].Type != TypeUint16 {
		return nil, ErrBadData
	}
	count, err := fields[0].AsUint()
	if err != nil {
		return nil, ErrBadData
	}
	if len(fields) != 2*int(count)+1 {
		return nil, ErrBadData
	}

	m := make(map[string]DataField, count)
	for i := 1; i < len(fields); i += 2 {
		key := fields[i]
		if key.Type != TypeString {
			return nil, ErrBadData
		}
		value := fields[i+1]
		if value.Type == TypeMap {
			return nil, ErrBadData
		}
		m[string(key.Value)] = value
	}
	return m, nil
}
