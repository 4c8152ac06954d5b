// internal/bridge/config.go
package bridge

import (
	"time"

	cfg "github.com/tamzrod/ftbridge/internal/config"
	"github.com/tamzrod/ftbridge/internal/indicator"
)

// Config is the immutable runtime config of the bridge.
type Config struct {
	Driver       string
	Device       string
	AutoRecovery bool
	FilterSlots  int

	BaseID      uint32
	Flag        uint8
	Toggle      bool
	Period      time.Duration
	SendTimeout time.Duration
	Tag         string

	PollBackoff    time.Duration
	RecoverTimeout time.Duration

	IndicatorID uint32
	LED         string           // sysfs LED name, empty => log only
	Indicator   indicator.Output // overrides LED when set

	Trace bool
}

// FromConfig maps a validated, normalized file config.
func FromConfig(c cfg.BridgeConfig, trace bool) Config {
	flag := uint8(cfg.DefaultFlag)
	if c.Sensor.Flag != nil {
		flag = *c.Sensor.Flag
	}

	return Config{
		Driver:       c.Device.Driver,
		Device:       c.Device.Name,
		AutoRecovery: c.Device.AutoRecovery,
		FilterSlots:  c.Device.FilterSlots,

		BaseID:      c.Sensor.BaseID,
		Flag:        flag,
		Toggle:      c.Sensor.Toggle,
		Period:      ms(c.Sensor.PeriodMs),
		SendTimeout: ms(c.Sensor.SendTimeoutMs),
		Tag:         c.Sensor.Tag,

		PollBackoff:    ms(c.Health.PollBackoffMs),
		RecoverTimeout: ms(c.Health.RecoverTimeoutMs),

		IndicatorID: c.Indicator.FrameID,
		LED:         c.Indicator.LED,

		Trace: trace,
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
