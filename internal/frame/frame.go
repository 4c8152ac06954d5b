// internal/frame/frame.go
package frame

import (
	"errors"
	"fmt"
	"strings"
)

// Frame is one classical CAN frame as seen by the bridge.
// It exists only for the duration of one callback or send call.
type Frame struct {
	ID       uint32 // 11-bit (standard) or 29-bit (extended)
	Extended bool
	RTR      bool // remote transmission request, no payload
	Len      uint8
	Data     [8]byte
}

const (
	MaxStdID = 0x7FF
	MaxExtID = 0x1FFFFFFF
	MaxLen   = 8
)

var (
	ErrInvalidID  = errors.New("frame: invalid identifier")
	ErrInvalidLen = errors.New("frame: invalid data length")
)

// Validate returns an error if the frame cannot exist on a classical CAN bus.
func (f Frame) Validate() error {
	if f.Len > MaxLen {
		return ErrInvalidLen
	}
	max := uint32(MaxStdID)
	if f.Extended {
		max = MaxExtID
	}
	if f.ID > max {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the valid part of Data.
func (f *Frame) Payload() []byte {
	n := f.Len
	if n > MaxLen {
		n = MaxLen
	}
	return f.Data[:n]
}

// String renders the frame as a trace line: |0x1b1|   |8| 0x00 0x00 ...|
func (f Frame) String() string {
	var sb strings.Builder

	rtr := "   "
	if f.RTR {
		rtr = "RTR"
	}
	fmt.Fprintf(&sb, "|0x%3x|%s|%d|", f.ID, rtr, f.Len)

	for i := 0; i < MaxLen; i++ {
		if i < int(f.Len) {
			fmt.Fprintf(&sb, " 0x%02x", f.Data[i])
		} else {
			sb.WriteString("     ")
		}
	}
	sb.WriteString("|")

	return sb.String()
}
