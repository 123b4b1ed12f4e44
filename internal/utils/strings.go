package utils

import "strings"

const hexDigits = "0123456789abcdef"

// FormatBytes returns b as space separated hex pairs for debug output.
func FormatBytes(b []byte) string {
	buf := strings.Builder{}
	buf.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteByte(hexDigits[c>>4])
		buf.WriteByte(hexDigits[c&0x0F])
	}
	return buf.String()
}
