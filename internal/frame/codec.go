// internal/frame/codec.go
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire format constants.
const (
	DefaultBaseID      uint32 = 0x1b0
	DefaultIndicatorID uint32 = 0x10

	SolicitFlag byte = 0x01

	IndicatorSet   byte = 1
	IndicatorReset byte = 0

	telemetryLen = 8
)

var (
	// ErrUnknownID means the frame is not addressed to this decoder.
	// Callers treat it as "not mine", never as a fault.
	ErrUnknownID   = errors.New("frame: identifier not handled")
	ErrShortFrame  = errors.New("frame: short frame")
	ErrRemoteFrame = errors.New("frame: remote frame carries no payload")
)

// ForceTorque is one decoded telemetry frame.
type ForceTorque struct {
	Group  int
	Force  int32
	Torque int32
}

// DecodeForceTorque decodes a telemetry frame.
// Bytes 0-3 carry the force, bytes 4-7 the torque, both big-endian two's complement.
func (t *AxisTable) DecodeForceTorque(f Frame) (ForceTorque, error) {
	if f.Extended {
		return ForceTorque{}, ErrUnknownID
	}
	g, ok := t.Group(f.ID)
	if !ok {
		return ForceTorque{}, ErrUnknownID
	}
	if f.RTR {
		return ForceTorque{}, fmt.Errorf("id=0x%x: %w", f.ID, ErrRemoteFrame)
	}
	if f.Len < telemetryLen {
		return ForceTorque{}, fmt.Errorf("id=0x%x len=%d: %w", f.ID, f.Len, ErrShortFrame)
	}

	return ForceTorque{
		Group:  g,
		Force:  int32(binary.BigEndian.Uint32(f.Data[0:4])),
		Torque: int32(binary.BigEndian.Uint32(f.Data[4:8])),
	}, nil
}

// EncodeSolicitation builds the 1-byte request frame at the sensor base id.
func EncodeSolicitation(base uint32, flag byte) Frame {
	f := Frame{ID: base, Len: 1}
	f.Data[0] = flag
	return f
}

// EncodeTelemetry builds a sensor response frame.
func EncodeTelemetry(id uint32, force, torque int32) Frame {
	f := Frame{ID: id, Len: telemetryLen}
	binary.BigEndian.PutUint32(f.Data[0:4], uint32(force))
	binary.BigEndian.PutUint32(f.Data[4:8], uint32(torque))
	return f
}

// EncodeIndicator builds an indicator command frame.
func EncodeIndicator(id uint32, on bool) Frame {
	f := Frame{ID: id, Len: 1}
	if on {
		f.Data[0] = IndicatorSet
	}
	return f
}

// DecodeIndicator decodes an indicator command frame addressed to id.
// Any non-zero command byte switches the indicator on.
func DecodeIndicator(id uint32, f Frame) (bool, error) {
	if f.Extended || f.ID != id {
		return false, ErrUnknownID
	}
	if f.RTR {
		return false, fmt.Errorf("id=0x%x: %w", f.ID, ErrRemoteFrame)
	}
	if f.Len < 1 {
		return false, fmt.Errorf("id=0x%x len=%d: %w", f.ID, f.Len, ErrShortFrame)
	}
	return f.Data[0] != IndicatorReset, nil
}
