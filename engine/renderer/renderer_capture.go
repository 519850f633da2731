package renderer

import (
	"errors"
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-ref/engine/camera"
	"github.com/Carmen-Shannon/oxy-ref/engine/frame"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/go-gl/mathgl/mgl32"
)

func (r *renderer) ScreenShot(name string, shot refapi.ShotType) bool {
	if r.machine.Require("ScreenShot", false) != nil {
		return false
	}
	return r.capturer.ScreenShot(name, shot)
}

func (r *renderer) CubemapShot(base string, size int, vieworg mgl32.Vec3, skyshot bool) bool {
	if r.machine.Require("CubemapShot", false) != nil {
		return false
	}
	if r.machine.State() == frame.StateFrameActive {
		logger.Warning("CubemapShot: not allowed inside a frame")
		return false
	}
	return r.capturer.CubemapShot(base, size, vieworg, skyshot)
}

// Frame returns the last presented frame of the current backend.
func (r *renderer) Frame() (*image.RGBA, error) {
	b := r.currentBackend()
	if b == nil {
		return nil, refapi.ErrNotInitialized
	}
	return b.ReadPixels()
}

// View renders one square 90 degree view outside the host frame. The backend is resized for
// the shot and restored afterwards; the scene lists of the current pass are reused.
func (r *renderer) View(origin, angles mgl32.Vec3, size int, skyOnly bool) (*image.RGBA, error) {
	b := r.currentBackend()
	if b == nil {
		return nil, refapi.ErrNotInitialized
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid view size %d", size)
	}

	g := *r.globals
	g.Width, g.Height = size, size
	g.FovX, g.FovY = 90, 90
	g.SetView(origin, angles)
	cam := camera.NewCamera(camera.WithNear(r.camera.Near()), camera.WithFar(r.camera.Far()))
	cam.Update(&g)

	w, h := b.Size()
	b.Resize(size, size)
	defer b.Resize(w, h)

	if err := b.BeginFrame(); err != nil {
		return nil, err
	}
	b.Clear(black)

	var drawErr error
	if !skyOnly {
		r.scene.SetFrustum(cam.Frustum())
		list := r.scene.Render(origin, r.engine.ClientTime())
		r.scene.SetFrustum(r.camera.Frustum())
		drawErr = b.DrawScene(list, cam)
	}
	if err := errors.Join(drawErr, b.EndFrame()); err != nil {
		return nil, err
	}
	return b.ReadPixels()
}
