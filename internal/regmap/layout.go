// internal/regmap/layout.go
package regmap

// Register map layout constants.
// These values define the external contract and MUST NOT be configurable.

// DefaultWords is the default size of the register image.
const DefaultWords = 10

// ---- MEASUREMENT SLOTS ----

// SlotPressure holds pressure as a scaled signed word.
const SlotPressure = 0

// SlotTemperature holds temperature as a scaled signed word.
const SlotTemperature = 1

// ---- STATUS BLOCK (OPT-IN) ----

// SlotHealth holds the reading quality code.
const SlotHealth = 2

// SlotSecondsSinceSample holds seconds since the last good sample (saturating).
const SlotSecondsSinceSample = 3

// SlotSequence holds the low 16 bits of the reading sequence number.
const SlotSequence = 4

// MinWordsWithStatus is the smallest image that can carry the status block.
const MinWordsWithStatus = SlotSequence + 1

// MinWords is the smallest image that can carry the measurements.
const MinWords = SlotTemperature + 1

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state: no sample published yet.
const HealthUnknown uint16 = 0

// HealthOK represents a fresh reading.
const HealthOK uint16 = 1

// HealthStale represents a reading older than the stale threshold.
const HealthStale uint16 = 3

// ---- LIMITS ----

// MaxSeconds is where SlotSecondsSinceSample saturates.
const MaxSeconds = 65535
