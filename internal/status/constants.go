// internal/status/constants.go
package status

// Bus status block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per device.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the bus health state.
const SlotHealthCode = 0

// SlotBusState holds the last controller state code.
const SlotBusState = 1

// SlotSecondsInError holds the duration (in seconds) the bus has been unhealthy.
const SlotSecondsInError = 2

// SlotTxErrors and SlotRxErrors hold the controller error counters.
const SlotTxErrors = 3
const SlotRxErrors = 4

// SlotBusOffCount holds the number of bus-off entries since start.
const SlotBusOffCount = 5

// SlotRecoveryFailures holds the number of failed bus-off recoveries.
const SlotRecoveryFailures = 6

// LiveSlots is the number of leading slots carrying live status.
const LiveSlots = 7

// ---- RESERVED RANGE ----

// Slots 7-10 are reserved for future use.
const SlotReservedStart = 7
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- TELEMETRY BLOCK ----

// TelemetryRegs is the size of the telemetry block: six int32 values, two registers each.
const TelemetryRegs = 12
