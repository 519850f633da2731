package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/Carmen-Shannon/oxy-ref/engine/diag"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/scene"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

func (r *renderer) BeginFrame(clearScene bool) error {
	if err := r.machine.BeginFrame(); err != nil {
		return err
	}
	r.BackendStartFrame()
	if clearScene {
		r.scene.Clear()
		r.decals.ClearQueue()
	}

	b := r.currentBackend()
	if w, h := b.Size(); r.globals.Width > 0 && r.globals.Height > 0 && (w != r.globals.Width || h != r.globals.Height) {
		b.Resize(r.globals.Width, r.globals.Height)
	}
	r.updateView()

	if err := b.BeginFrame(); err != nil {
		// The frame never opened on the backend; close it as failed so the next BeginFrame
		// starts clean.
		err = fmt.Errorf("BeginFrame: backend: %w", err)
		r.machine.Violation("BeginFrame", err)
		r.machine.EndFrame()
		r.BackendEndFrame()
		r.diag.EndFrame(true)
		r.profiler.Tick(true)
		return err
	}
	return nil
}

// updateView refreshes the camera from the globals and hands the new view to culling and the
// TriAPI projection helpers.
func (r *renderer) updateView() {
	r.camera.Update(r.globals)
	r.scene.SetFrustum(r.camera.Frustum())
	if r.machine.Is2D() {
		r.tri.SetView(mgl32.Ident4(), r.screenProjection(), r.camera.Viewport())
		return
	}
	r.tri.SetView(r.camera.ViewMatrix(), r.camera.ProjectionMatrix(), r.camera.Viewport())
}

func (r *renderer) screenProjection() mgl32.Mat4 {
	w, h := r.globals.Width, r.globals.Height
	if w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}
	return mgl32.Ortho(0, float32(w), float32(h), 0, -99999, 99999)
}

func (r *renderer) RenderScene() error {
	if err := r.machine.Require("RenderScene", true); err != nil {
		return err
	}
	r.updateView()

	list := r.scene.Render(r.globals.ViewOrg, r.engine.ClientTime())

	// The queue holds this pass only. The world carries entity index 0.
	r.decals.ClearQueue()
	if r.scene.World() != nil {
		r.decals.Queue(0)
	}
	for _, items := range [][]scene.DrawItem{list.Solid, list.Trans, list.Statics} {
		for _, it := range items {
			if it.Entity != nil {
				r.decals.Queue(it.Entity.Index)
			}
		}
	}

	r.diag.Add(diag.CounterEntities, len(list.Solid)+len(list.Trans)+len(list.Beams))
	r.diag.Add(diag.CounterStatics, len(list.Statics))
	r.diag.Add(diag.CounterParticles, len(list.Particles))
	list.Decals = r.decals.DrawQueue()
	r.diag.Add(diag.CounterDecals, len(list.Decals))

	if err := r.currentBackend().DrawScene(list, r.camera); err != nil {
		err = fmt.Errorf("RenderScene: backend: %w", err)
		r.machine.Violation("RenderScene", err)
		return err
	}
	return nil
}

func (r *renderer) EndFrame() error {
	if err := r.machine.Require("EndFrame", true); err != nil {
		return err
	}

	var batchErr error
	if r.tri.Discard() {
		batchErr = fmt.Errorf("%w: EndFrame: open TriAPI batch discarded", refapi.ErrProtocolViolation)
		r.machine.Violation("EndFrame", batchErr)
	}
	unwound, err := r.machine.EndFrame()
	r.scene.Unwind()

	b := r.currentBackend()
	backendErr := b.EndFrame()
	if backendErr != nil {
		backendErr = fmt.Errorf("EndFrame: backend: %w", backendErr)
		logger.Error(backendErr.Error())
	}

	if batchErr == nil && unwound == 0 && backendErr == nil {
		b.Present()
	} else {
		logger.Warningf("frame %d not presented", r.machine.Frames())
	}
	r.BackendEndFrame()

	failed := r.machine.FrameFailed() || backendErr != nil
	r.diag.EndFrame(failed)
	r.profiler.Tick(failed)

	return errors.Join(batchErr, err, backendErr)
}

func (r *renderer) PushScene() error {
	if err := r.machine.PushScene(); err != nil {
		return err
	}
	r.scene.Push()
	return nil
}

func (r *renderer) PopScene() error {
	if err := r.machine.PopScene(); err != nil {
		return err
	}
	r.scene.Pop()
	return nil
}

func (r *renderer) IsNormalPass() bool {
	return r.scene.IsNormalPass()
}

func (r *renderer) BackendStartFrame() {
	r.diag.StartFrame(r.machine.Frames())
	r.tri.ResetStats()
}

func (r *renderer) BackendEndFrame() {
	r.diag.Add(diag.CounterBatches, r.tri.Flushed())
	r.tri.ResetStats()
	if r.globals.Developer {
		var sb strings.Builder
		if err := r.diag.WriteCounters(&sb); err == nil {
			logger.Debugf("speeds: %s", sb.String())
		}
	}
}

func (r *renderer) ClearScreen() {
	if r.machine.Require("ClearScreen", true) != nil {
		return
	}
	r.currentBackend().Clear(black)
}

func (r *renderer) AllowFog(allow bool) {
	r.mu.Lock()
	r.fogDenied = !allow
	on := r.fogOn && allow
	r.mu.Unlock()

	f := r.tri.State().Fog
	r.tri.Fog(f.Color, f.Start, f.End, on)
}

func (r *renderer) SetRenderMode(mode refapi.RenderMode) {
	r.tri.RenderMode(mode)
}

func (r *renderer) Set2DMode(enable bool) {
	r.machine.Set2DMode(enable)
	r.updateView()
}

func (r *renderer) DrawStretchPic(x, y, w, h, s1, t1, s2, t2 float32, tex texture.Handle) {
	if r.machine.Require("DrawStretchPic", true) != nil {
		return
	}
	if !tex.Valid() {
		return
	}
	mode := BlendForRenderMode(r.engine.TriGetRenderMode())
	rect := screenRect(x, y, w, h)
	if err := r.currentBackend().Blit(rect, tex, [4]float32{s1, t1, s2, t2}, color.RGBA{255, 255, 255, 255}, mode); err != nil {
		logger.Debugf("DrawStretchPic: %v", err)
	}
}

func (r *renderer) DrawStretchRaw(x, y, w, h float32, cols, rows int, data []byte, dirty bool) {
	if r.machine.Require("DrawStretchRaw", true) != nil {
		return
	}
	if cols <= 0 || rows <= 0 || len(data) != cols*rows*4 {
		logger.Warningf("DrawStretchRaw: %d bytes do not hold %dx%d RGBA", len(data), cols, rows)
		return
	}

	r.mu.Lock()
	img := r.rawImage
	if img == nil || img.Rect.Dx() != cols || img.Rect.Dy() != rows {
		img = image.NewRGBA(image.Rect(0, 0, cols, rows))
		r.rawImage = img
		dirty = true
	}
	if dirty {
		copy(img.Pix, data)
	}
	r.mu.Unlock()

	if err := r.currentBackend().BlitRaw(screenRect(x, y, w, h), img); err != nil {
		logger.Debugf("DrawStretchRaw: %v", err)
	}
}

func (r *renderer) DrawTileClear(x, y, w, h int) {
	if r.machine.Require("DrawTileClear", true) != nil {
		return
	}
	r.currentBackend().Fill(image.Rect(x, y, x+w, y+h), black, BlendNone)
}

func (r *renderer) FillRGBA(x, y, w, h int, cr, cg, cb, ca uint8) {
	if r.machine.Require("FillRGBA", true) != nil {
		return
	}
	r.currentBackend().Fill(image.Rect(x, y, x+w, y+h), color.RGBA{cr, cg, cb, ca}, BlendAdditive)
}

func (r *renderer) FillRGBABlend(x, y, w, h int, cr, cg, cb, ca uint8) {
	if r.machine.Require("FillRGBABlend", true) != nil {
		return
	}
	r.currentBackend().Fill(image.Rect(x, y, x+w, y+h), color.RGBA{cr, cg, cb, ca}, BlendAlpha)
}

func (r *renderer) IncrementSpeedsCounter(c refapi.SpeedsCounter) {
	r.diag.IncrementSpeedsCounter(c)
}

func screenRect(x, y, w, h float32) image.Rectangle {
	return image.Rect(int(x), int(y), int(x+w), int(y+h))
}
