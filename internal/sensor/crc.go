// internal/sensor/crc.go
package sensor

const (
	crcPoly byte = 0x31
	crcInit byte = 0xFF
)

// CRC8 computes the device checksum over data.
// Polynomial 0x31, init 0xFF, MSB first, no reflection, no final XOR.
func CRC8(data []byte) byte {
	crc := crcInit
	for _, b := range data {
		crc ^= b
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crcPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
