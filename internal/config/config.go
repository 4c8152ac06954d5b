// internal/config/config.go
package config

type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

type BridgeConfig struct {
	Device    DeviceConfig    `yaml:"device"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Health    HealthConfig    `yaml:"health"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Publish   PublishConfig   `yaml:"publish"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Driver       string `yaml:"driver"` // sim | socketcan
	Name         string `yaml:"name"`
	AutoRecovery bool   `yaml:"auto_recovery"`
	FilterSlots  int    `yaml:"filter_slots"`
}

// ---- SENSOR ----

type SensorConfig struct {
	BaseID        uint32 `yaml:"base_id"`
	Flag          *uint8 `yaml:"flag"` // nil => 0x01
	Toggle        bool   `yaml:"toggle"`
	PeriodMs      int    `yaml:"period_ms"`
	SendTimeoutMs int    `yaml:"send_timeout_ms"` // 0 => no wait
	Tag           string `yaml:"tag"`
}

// ---- HEALTH ----

type HealthConfig struct {
	PollBackoffMs    int `yaml:"poll_backoff_ms"`
	RecoverTimeoutMs int `yaml:"recover_timeout_ms"`
}

// ---- INDICATOR ----

type IndicatorConfig struct {
	FrameID uint32 `yaml:"frame_id"`
	LED     string `yaml:"led"` // sysfs led name, empty => log only
}

// ---- PUBLISH (optional, opt-in) ----

type PublishConfig struct {
	Endpoint      string `yaml:"endpoint"`
	UnitID        uint8  `yaml:"unit_id"`
	BaseSlot      uint16 `yaml:"base_slot"`
	TelemetryAddr uint16 `yaml:"telemetry_addr"`
	DeviceName    string `yaml:"device_name"`
	IntervalMs    int    `yaml:"interval_ms"`
	TimeoutMs     int    `yaml:"timeout_ms"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}
