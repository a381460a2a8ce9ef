// internal/sensor/device.go
package sensor

// Device constants for the SDP8xx-class differential pressure transducer.
// These values define the device contract and MUST NOT be configurable
// beyond what the config layer exposes (address, start command, scales).

// Address is the factory 7-bit bus address.
const Address uint16 = 0x25

// ---- COMMANDS ----

// CmdContinuousAvg starts continuous measurement, mass-flow temperature
// compensation, averaging until read.
const CmdContinuousAvg uint16 = 0x3603

// CmdContinuousNoAvg starts continuous measurement without averaging.
const CmdContinuousNoAvg uint16 = 0x3608

// CmdStop stops continuous measurement.
const CmdStop uint16 = 0x3FF9

// IsStartCommand reports whether word starts continuous measurement.
func IsStartCommand(word uint16) bool {
	return word == CmdContinuousAvg || word == CmdContinuousNoAvg
}

// ---- FRAME GEOMETRY ----

// CommandLen is the size of one command write.
const CommandLen = 2

// GroupLen is one {high, low, crc} group.
const GroupLen = 3

// FrameLen is the size of one measurement read: pressure group + temperature group.
const FrameLen = 2 * GroupLen

// ---- DEFAULT SCALE FACTORS ----

// DefaultPressureScale is raw counts per Pa.
const DefaultPressureScale = 60

// DefaultTemperatureScale is raw counts per degree Celsius.
const DefaultTemperatureScale = 200
