package capture

import "encoding/binary"

// appendPCM16 decodes little-endian signed 16-bit PCM bytes into float32
// samples in [-1, 1) and appends them to dst. b must have even length.
func appendPCM16(dst []float32, b []byte) []float32 {
	for i := 0; i+1 < len(b); i += 2 {
		s := int16(binary.LittleEndian.Uint16(b[i:]))
		dst = append(dst, float32(s)/32768)
	}
	return dst
}
