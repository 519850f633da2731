package entity

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestStudioEstimateFrame(t *testing.T) {
	looping := &model.Sequence{FPS: 10, NumFrames: 11, Flags: model.StudioLooping}
	once := &model.Sequence{FPS: 10, NumFrames: 11}
	single := &model.Sequence{FPS: 10, NumFrames: 1}

	tests := []struct {
		name     string
		seq      *model.Sequence
		frame    float32
		rate     float32
		animTime float64
		time     float64
		want     float64
	}{
		{"start of sequence", looping, 0, 1, 1, 1, 0},
		{"half a second in", looping, 0, 1, 1, 1.5, 5},
		{"wraps past the end", looping, 0, 1, 1, 2.3, 3},
		{"frame offset", looping, 128, 1, 1, 1, 5},
		{"time before animtime", looping, 0, 1, 2, 1, 0},
		{"double rate", looping, 0, 2, 0, 0.25, 5},
		{"negative rate wraps", looping, 0, -1, 0, 0.2, 8},
		{"non looping clamps", once, 0, 1, 0, 5, 9.999},
		{"non looping below zero", once, 0, -1, 0, 1, 0},
		{"single frame", single, 200, 1, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entity{CurState: State{Frame: tt.frame, FrameRate: tt.rate, AnimTime: tt.animTime}}
			got := StudioEstimateFrame(e, tt.seq, tt.time)
			if !near(got, tt.want) {
				t.Errorf("StudioEstimateFrame = %v, want %v", got, tt.want)
			}
			if again := StudioEstimateFrame(e, tt.seq, tt.time); again != got {
				t.Errorf("not deterministic: %v then %v", got, again)
			}
		})
	}
	if StudioEstimateFrame(nil, looping, 0) != 0 || StudioEstimateFrame(&Entity{}, nil, 0) != 0 {
		t.Error("missing inputs must give frame 0")
	}
}

func TestStudioLerpMovement(t *testing.T) {
	e := &Entity{
		Origin: mgl32.Vec3{10, 0, 0},
		Angles: mgl32.Vec3{0, 170, 0},
		CurState: State{
			AnimTime: 1.0,
		},
		Latched: Latched{
			PrevAnimTime: 0.9,
			PrevOrigin:   mgl32.Vec3{0, 0, 0},
			PrevAngles:   mgl32.Vec3{0, -170, 0},
		},
	}

	// At the update time the entity is still at its previous position.
	origin, angles := StudioLerpMovement(e, 1.0)
	if !origin.ApproxEqualThreshold(mgl32.Vec3{0, 0, 0}, 1e-4) {
		t.Errorf("origin at animtime = %v", origin)
	}
	// The yaw delta wraps through 180 (-20 degrees), not across 0 (340 degrees).
	if math.Abs(float64(angles[1]-190)) > 1e-3 {
		t.Errorf("yaw at animtime = %v, want 190", angles[1])
	}

	origin, _ = StudioLerpMovement(e, 1.05)
	if !origin.ApproxEqualThreshold(mgl32.Vec3{5, 0, 0}, 1e-3) {
		t.Errorf("origin half way = %v, want {5 0 0}", origin)
	}

	origin, angles = StudioLerpMovement(e, 1.1)
	if !origin.ApproxEqualThreshold(e.Origin, 1e-3) || !angles.ApproxEqualThreshold(e.Angles, 1e-3) {
		t.Errorf("after one interval = %v %v, want current position", origin, angles)
	}

	// Stale updates are not interpolated.
	origin, _ = StudioLerpMovement(e, 5)
	if origin != e.Origin {
		t.Errorf("stale origin = %v, want %v", origin, e.Origin)
	}
	if e.Origin != (mgl32.Vec3{10, 0, 0}) {
		t.Error("StudioLerpMovement mutated the entity")
	}
}

func TestEntityClassification(t *testing.T) {
	mod := &model.Model{Mins: mgl32.Vec3{-1, -1, -1}, Maxs: mgl32.Vec3{1, 1, 1}, Radius: 2}
	e := &Entity{Origin: mgl32.Vec3{10, 0, 0}, Model: mod}
	mins, maxs := e.Bounds()
	if mins != (mgl32.Vec3{9, -1, -1}) || maxs != (mgl32.Vec3{11, 1, 1}) {
		t.Errorf("bounds = %v %v", mins, maxs)
	}
	e.Angles = mgl32.Vec3{0, 45, 0}
	mins, _ = e.Bounds()
	if mins != (mgl32.Vec3{8, -2, -2}) {
		t.Errorf("rotated bounds = %v", mins)
	}

	tests := []struct {
		mode        refapi.RenderMode
		amt         float32
		translucent bool
		invisible   bool
	}{
		{refapi.RenderNormal, 0, false, false},
		{refapi.RenderTransAlpha, 0, false, false},
		{refapi.RenderTransAdd, 255, true, false},
		{refapi.RenderTransTexture, 0, true, true},
	}
	for _, tt := range tests {
		e := &Entity{CurState: State{RenderMode: tt.mode, RenderAmt: tt.amt}}
		if e.Translucent() != tt.translucent || e.Invisible() != tt.invisible {
			t.Errorf("mode %d amt %v: translucent=%v invisible=%v", tt.mode, tt.amt, e.Translucent(), e.Invisible())
		}
	}
}
