// Package waveform produces deterministic telemetry samples from elapsed
// simulated time. A Generator holds only its track description; every sample
// is a pure function of t.
package waveform

import (
	"math"

	"github.com/acudp-mock/internal/config"
	"github.com/acudp-mock/internal/model"
)

const (
	speedMin = 80.0
	speedMax = 310.0
	gearMin  = 2
	gearMax  = 6
)

// Generator computes samples for one closed circuit pattern
type Generator struct {
	lapDuration float64
	brakeZones  []config.Window
	liftWindows []config.LiftWindow
}

// NewGenerator creates a generator for the given track
func NewGenerator(track config.TrackConfig) *Generator {
	return &Generator{
		lapDuration: track.LapDurationSec,
		brakeZones:  append([]config.Window(nil), track.BrakeZones...),
		liftWindows: append([]config.LiftWindow(nil), track.LiftWindows...),
	}
}

// LapProgress maps t onto [0, 1) within the repeating lap.
func (g *Generator) LapProgress(t float64) float64 {
	p := math.Mod(t, g.lapDuration)
	if p < 0 {
		p += g.lapDuration
	}
	return p / g.lapDuration
}

// InBrakeZone reports whether a lap progress value lies inside any brake zone.
func (g *Generator) InBrakeZone(progress float64) bool {
	for _, z := range g.brakeZones {
		if progress >= z.Start && progress <= z.End {
			return true
		}
	}
	return false
}

// Sample returns the vehicle state at simulated time t (seconds).
func (g *Generator) Sample(t float64) model.TelemetrySample {
	progress := g.LapProgress(t)
	braking := g.InBrakeZone(progress)

	brake := 0.0
	if braking {
		brake = 75 + math.Abs(math.Sin(t*12))*25
	}

	throttle := 100.0
	if braking {
		throttle = 0
	}
	for _, w := range g.liftWindows {
		if progress >= w.Start && progress <= w.End {
			throttle = w.Throttle
			break
		}
	}

	straightBoost := 1.0
	if braking {
		straightBoost = 0.3
	}
	speed := 120 + 130*math.Sin(t*0.7)*straightBoost + 50*math.Cos(progress*4*math.Pi)
	speed = clamp(speed, speedMin, speedMax)

	gear := int32(math.Floor(2 + speed/55 + 0.3*math.Sin(t)))
	if gear < gearMin {
		gear = gearMin
	} else if gear > gearMax {
		gear = gearMax
	}

	rpm := 3500 + (speed/300)*4500 + 800*math.Sin(t*2)

	mainCorner := 120 * math.Sin(progress*6*math.Pi)
	chicane := 80 * math.Sin(progress*25*math.Pi)
	steer := (mainCorner + chicane) * math.Pi / 180

	abs := 0.0
	if brake > 65 {
		abs = math.Min(30+(brake-65)*1.5, 100)
	}

	tc := 0.0
	if throttle > 80 && brake < 10 {
		slip := (math.Sin(t*3) + math.Sin(t*0.5)) / 2
		tc = math.Min(math.Max(slip, 0)*40, 100)
	}

	return model.TelemetrySample{
		SpeedKmh:          float32(speed),
		RPM:               float32(rpm),
		Gear:              gear,
		ThrottlePercent:   float32(throttle),
		BrakePercent:      float32(brake),
		SteerAngleRadians: float32(steer),
		ABSPercent:        float32(abs),
		TCPercent:         float32(tc),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
