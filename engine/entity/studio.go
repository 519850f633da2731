package entity

import (
	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// lerpWindow is how long after the last update movement is still interpolated, in seconds.
const lerpWindow = 1.0

// StudioEstimateFrame computes the fractional animation frame of e for the sequence at the
// given host time. It reads e and seq only; identical inputs give identical results.
//
// Parameters:
//   - e: the entity
//   - seq: the sequence being played
//   - time: the host time in seconds
//
// Returns:
//   - float64: the frame, wrapped for looping sequences and clamped otherwise
func StudioEstimateFrame(e *Entity, seq *model.Sequence, time float64) float64 {
	if e == nil || seq == nil {
		return 0
	}
	var dfdt float64
	if time >= e.CurState.AnimTime {
		dfdt = (time - e.CurState.AnimTime) * float64(e.CurState.FrameRate) * float64(seq.FPS)
	}

	last := float64(seq.NumFrames - 1)
	var f float64
	if seq.NumFrames > 1 {
		f = float64(e.CurState.Frame) * last / 256
	}
	f += dfdt

	if seq.Looping() {
		if seq.NumFrames > 1 {
			f -= float64(int(f/last)) * last
		}
		if f < 0 {
			f += last
		}
		return f
	}
	if f >= last-0.001 {
		f = last - 0.001
	}
	if f < 0 {
		f = 0
	}
	return f
}

// StudioLerpMovement interpolates the render origin and angles of e between its latched and
// current positions. It reads e only.
//
// Parameters:
//   - e: the entity
//   - time: the host time in seconds
//
// Returns:
//   - origin, angles: the interpolated position
func StudioLerpMovement(e *Entity, time float64) (origin, angles mgl32.Vec3) {
	if e == nil {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	f := 1.0
	if time < e.CurState.AnimTime+lerpWindow && e.CurState.AnimTime != e.Latched.PrevAnimTime {
		f = (time - e.CurState.AnimTime) / (e.CurState.AnimTime - e.Latched.PrevAnimTime)
	}
	f -= 1
	ff := float32(f)

	origin = e.Origin.Add(e.Origin.Sub(e.Latched.PrevOrigin).Mul(ff))
	angles = e.Angles
	for i := 0; i < 3; i++ {
		angles[i] += common.AngleDelta(e.Angles[i], e.Latched.PrevAngles[i]) * ff
	}
	return origin, angles
}
