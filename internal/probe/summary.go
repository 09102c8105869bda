package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/acudp-mock/internal/model"
)

// ChannelStats summarizes one telemetry channel over a capture
type ChannelStats struct {
	Name string
	Min  float64
	Mean float64
	Max  float64
}

// Summarize computes min/mean/max per channel. It returns nil for an empty capture.
func Summarize(samples []model.TelemetrySample) []ChannelStats {
	if len(samples) == 0 {
		return nil
	}

	channels := []struct {
		name string
		get  func(model.TelemetrySample) float64
	}{
		{"speed_kmh", func(s model.TelemetrySample) float64 { return float64(s.SpeedKmh) }},
		{"rpm", func(s model.TelemetrySample) float64 { return float64(s.RPM) }},
		{"gear", func(s model.TelemetrySample) float64 { return float64(s.Gear) }},
		{"throttle", func(s model.TelemetrySample) float64 { return float64(s.ThrottlePercent) }},
		{"brake", func(s model.TelemetrySample) float64 { return float64(s.BrakePercent) }},
		{"steer_rad", func(s model.TelemetrySample) float64 { return float64(s.SteerAngleRadians) }},
		{"abs", func(s model.TelemetrySample) float64 { return float64(s.ABSPercent) }},
		{"tc", func(s model.TelemetrySample) float64 { return float64(s.TCPercent) }},
	}

	out := make([]ChannelStats, 0, len(channels))
	values := make([]float64, len(samples))
	for _, ch := range channels {
		for i, s := range samples {
			values[i] = ch.get(s)
		}
		out = append(out, ChannelStats{
			Name: ch.name,
			Min:  floats.Min(values),
			Mean: stat.Mean(values, nil),
			Max:  floats.Max(values),
		})
	}
	return out
}

// RunOptions bounds a capture. Zero Count means unbounded; zero Duration
// means no time limit. PrintEvery of zero prints no individual frames.
type RunOptions struct {
	Count      int
	Duration   time.Duration
	PrintEvery int
}

// Run handshakes, subscribes and collects frames until the count or
// duration is reached or ctx ends, printing progress and a summary to w.
func Run(ctx context.Context, c *Client, opts RunOptions, w io.Writer) ([]model.TelemetrySample, error) {
	if err := c.Handshake(); err != nil {
		return nil, err
	}
	if err := c.Subscribe(); err != nil {
		return nil, err
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	var samples []model.TelemetrySample
	for opts.Count == 0 || len(samples) < opts.Count {
		s, err := c.Next(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return samples, err
		}
		samples = append(samples, s)

		if opts.PrintEvery > 0 && len(samples)%opts.PrintEvery == 0 {
			fmt.Fprintf(w, "#%d speed=%.1f rpm=%.0f gear=%d throttle=%.0f brake=%.0f steer=%.3f abs=%.0f tc=%.0f\n",
				len(samples), s.SpeedKmh, s.RPM, s.Gear, s.ThrottlePercent, s.BrakePercent,
				s.SteerAngleRadians, s.ABSPercent, s.TCPercent)
		}
	}

	WriteSummary(w, samples)
	return samples, nil
}

// WriteSummary prints a table of channel statistics
func WriteSummary(w io.Writer, samples []model.TelemetrySample) {
	fmt.Fprintf(w, "%d frames\n", len(samples))
	stats := Summarize(samples)
	if stats == nil {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "channel\tmin\tmean\tmax")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\n", s.Name, s.Min, s.Mean, s.Max)
	}
	tw.Flush()
}
