// internal/writer/errors.go
package writer

import (
	"errors"

	"github.com/goburrow/modbus"
)

// errorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// Modbus exceptions report their exception code. Anything else is 1 (generic error).
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return uint16(me.ExceptionCode)
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	return 1
}
