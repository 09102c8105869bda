package model

// TelemetrySample is one instant of synthetic vehicle state.
// Ranges are enforced by the generator, not by this type.
type TelemetrySample struct {
	SpeedKmh          float32 `json:"speedKmh"`          // [80, 310]
	RPM               float32 `json:"rpm"`               // unclamped
	Gear              int32   `json:"gear"`              // 2..6
	ThrottlePercent   float32 `json:"throttlePercent"`   // [0, 100]
	BrakePercent      float32 `json:"brakePercent"`      // [0, 100]
	SteerAngleRadians float32 `json:"steerAngleRadians"` // signed
	ABSPercent        float32 `json:"absPercent"`        // [0, 100]
	TCPercent         float32 `json:"tcPercent"`         // [0, 100]
}
