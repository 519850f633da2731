// Package entity holds the entity record the host submits each frame and the pure studio
// animation helpers computed from it.
package entity

import (
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/go-gl/mathgl/mgl32"
)

// State is the networked part of an entity (entity_state_t) the renderer reads.
type State struct {
	Origin mgl32.Vec3
	Angles mgl32.Vec3

	ModelIndex int
	Sequence   int
	Frame      float32
	FrameRate  float32
	AnimTime   float64
	Skin       int
	Body       int
	Effects    int

	RenderMode  refapi.RenderMode
	RenderAmt   float32
	RenderColor [3]uint8
	RenderFx    int
	Scale       float32
}

// Latched holds the previous values used to interpolate between server updates.
type Latched struct {
	PrevAnimTime float64
	PrevOrigin   mgl32.Vec3
	PrevAngles   mgl32.Vec3
	PrevSequence int
	PrevFrame    float32
}

// Entity is one client entity (cl_entity_t) as far as the renderer reads it.
type Entity struct {
	Index  int
	Player bool

	// Origin and Angles are the interpolated render position.
	Origin mgl32.Vec3
	Angles mgl32.Vec3

	CurState  State
	PrevState State
	Latched   Latched

	Model *model.Model
}

// Bounds returns the world space box of the entity's model at its current origin.
//
// Returns:
//   - mins, maxs: the box corners, or the origin twice when the entity has no model
func (e *Entity) Bounds() (mins, maxs mgl32.Vec3) {
	if e.Model == nil {
		return e.Origin, e.Origin
	}
	if e.Angles != (mgl32.Vec3{}) && e.Model.Radius > 0 {
		// Rotated models are bounded by their radius.
		r := mgl32.Vec3{e.Model.Radius, e.Model.Radius, e.Model.Radius}
		return e.Origin.Sub(r), e.Origin.Add(r)
	}
	return e.Origin.Add(e.Model.Mins), e.Origin.Add(e.Model.Maxs)
}

// Translucent reports whether the entity draws in the transparent pass.
func (e *Entity) Translucent() bool {
	return !e.CurState.RenderMode.Opaque()
}

// Invisible reports whether a translucent entity currently contributes nothing to the image.
func (e *Entity) Invisible() bool {
	return e.Translucent() && e.CurState.RenderAmt <= 0
}
