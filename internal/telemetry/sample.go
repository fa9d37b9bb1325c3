package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SensorSample is one decoded telemetry frame: three gyro angles in degrees,
// die temperature in °C and the device timestamp in epoch milliseconds.
type SensorSample struct {
	GyroX       float64
	GyroY       float64
	GyroZ       float64
	Temperature float64
	Timestamp   int64
}

// frame is the wire schema. Pointers distinguish absent/null fields from explicit values.
type frame struct {
	GyroX       *float64 `json:"gyroX"`
	GyroY       *float64 `json:"gyroY"`
	GyroZ       *float64 `json:"gyroZ"`
	Temperature *float64 `json:"temperature"`
	Timestamp   *int64   `json:"timestamp"`
}

// Decode parses one inbound frame. Missing or null fields default to 0, except
// timestamp which defaults to the receipt time when missing, null or 0. A frame that
// is not a JSON object, or carries a field of the wrong type, yields a *DecodeError;
// timestamp must be an integer that fits in int64.
func Decode(data []byte, received time.Time) (SensorSample, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return SensorSample{}, &DecodeError{Frame: clip(data), Err: fmt.Errorf("frame is not a JSON object")}
	}
	var f frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return SensorSample{}, &DecodeError{Frame: clip(data), Err: err}
	}
	s := SensorSample{
		GyroX:       orZero(f.GyroX),
		GyroY:       orZero(f.GyroY),
		GyroZ:       orZero(f.GyroZ),
		Temperature: orZero(f.Temperature),
	}
	if f.Timestamp != nil {
		s.Timestamp = *f.Timestamp
	}
	if s.Timestamp == 0 {
		s.Timestamp = received.UnixMilli()
	}
	return s, nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// maxFrameEcho limits how much of a bad frame is kept for logging.
const maxFrameEcho = 64

func clip(data []byte) string {
	if len(data) > maxFrameEcho {
		return string(data[:maxFrameEcho]) + "..."
	}
	return string(data)
}
