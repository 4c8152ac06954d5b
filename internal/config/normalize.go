// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultDriver           = "socketcan"
	DefaultBaseID           = 0x1b0
	DefaultFlag             = 0x01
	DefaultPeriodMs         = 250
	DefaultTag              = "ft request"
	DefaultPollBackoffMs    = 100
	DefaultRecoverTimeoutMs = 100
	DefaultIndicatorID      = 0x10
	DefaultPublishUnitID    = 1
	DefaultTelemetryAddr    = 100
	DefaultIntervalMs       = 1000
	DefaultTimeoutMs        = 1000
	DefaultFilterSlots      = 8

	MaxDeviceName = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	b := &cfg.Bridge

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	if b.Device.Driver == "" {
		b.Device.Driver = DefaultDriver
	}
	if b.Device.FilterSlots == 0 {
		b.Device.FilterSlots = DefaultFilterSlots
	}

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------

	if b.Sensor.BaseID == 0 {
		b.Sensor.BaseID = DefaultBaseID
	}
	if b.Sensor.Flag == nil {
		f := uint8(DefaultFlag)
		b.Sensor.Flag = &f
	}
	if b.Sensor.PeriodMs == 0 {
		b.Sensor.PeriodMs = DefaultPeriodMs
	}
	if b.Sensor.Tag == "" {
		b.Sensor.Tag = DefaultTag
	}

	// ------------------------------------------------------------
	// HEALTH
	// ------------------------------------------------------------

	if b.Health.PollBackoffMs == 0 {
		b.Health.PollBackoffMs = DefaultPollBackoffMs
	}
	if b.Health.RecoverTimeoutMs == 0 {
		b.Health.RecoverTimeoutMs = DefaultRecoverTimeoutMs
	}

	if b.Indicator.FrameID == 0 {
		b.Indicator.FrameID = DefaultIndicatorID
	}

	// ------------------------------------------------------------
	// PUBLISH (OPT-IN)
	// ------------------------------------------------------------

	if b.Publish.Endpoint == "" {
		return
	}
	if b.Publish.UnitID == 0 {
		b.Publish.UnitID = DefaultPublishUnitID
	}
	if b.Publish.TelemetryAddr == 0 {
		b.Publish.TelemetryAddr = DefaultTelemetryAddr
	}
	if b.Publish.IntervalMs == 0 {
		b.Publish.IntervalMs = DefaultIntervalMs
	}
	if b.Publish.TimeoutMs == 0 {
		b.Publish.TimeoutMs = DefaultTimeoutMs
	}

	// Normalize device_name:
	// - ASCII already validated
	// - Truncate to max 16 characters
	if len(b.Publish.DeviceName) > MaxDeviceName {
		b.Publish.DeviceName = b.Publish.DeviceName[:MaxDeviceName]
	}
}
