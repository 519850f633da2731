package host

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/go-gl/mathgl/mgl32"
)

// Check is one scripted exchange with the renderer.
type Check struct {
	Name string

	// Run drives the renderer. It must leave no frame open.
	Run func(ref renderer.RefInterface) error

	// Want is the sentinel Run must fail with; nil if Run must succeed.
	Want error
}

// CheckResult is the outcome of one Check.
type CheckResult struct {
	Name       string
	Passed     bool
	Err        error
	Violations int // violations recorded by the renderer during the check
}

// ConformanceChecks is the scripted frame sequence run by Conform.
var ConformanceChecks = []Check{
	{Name: "frame lifecycle", Run: checkFrameLifecycle},
	{Name: "double BeginFrame", Run: checkDoubleBegin, Want: refapi.ErrProtocolViolation},
	{Name: "RenderScene outside a frame", Run: checkRenderOutside, Want: refapi.ErrProtocolViolation},
	{Name: "nested scene", Run: checkNestedScene},
	{Name: "unbalanced PushScene", Run: checkUnbalancedPush, Want: refapi.ErrProtocolViolation},
	{Name: "entity submission", Run: checkEntities},
	{Name: "texture registry", Run: checkTextures},
	{Name: "TriAPI batch", Run: checkTriBatch},
	{Name: "TriBegin outside a frame", Run: checkTriOutside, Want: refapi.ErrProtocolViolation},
	{Name: "Vertex3f on an ended batch", Run: checkStaleBatch, Want: refapi.ErrProtocolViolation},
	{Name: "2D draws", Run: check2D},
	{Name: "decal list", Run: checkDecals},
}

// Conform runs the checks against the renderer of h.
//
// Parameters:
//   - h: an initialized host; its view is reset to the origin looking down +X
//   - checks: the checks, usually ConformanceChecks
//
// Returns:
//   - []CheckResult: one result per check, in order
func Conform(h Host, checks []Check) []CheckResult {
	h.Globals().SetView(mgl32.Vec3{}, mgl32.Vec3{})
	ref := h.Ref()
	diags := ref.Diagnostics()

	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		before := diags.ViolationCount()
		err := c.Run(ref)

		res := CheckResult{Name: c.Name, Err: err, Violations: diags.ViolationCount() - before}
		switch {
		case c.Want == nil:
			res.Passed = err == nil
		default:
			res.Passed = errors.Is(err, c.Want) && res.Violations > 0
		}
		if !res.Passed {
			logger.Warningf("conformance: %s failed: %v", c.Name, err)
		}
		results = append(results, res)
	}
	return results
}

// frame runs body inside one frame and joins its error with the frame's.
func frame(ref renderer.RefInterface, body func() error) error {
	if err := ref.BeginFrame(true); err != nil {
		return err
	}
	bodyErr := body()
	return errors.Join(bodyErr, ref.EndFrame())
}

func checkFrameLifecycle(ref renderer.RefInterface) error {
	for i := 0; i < 3; i++ {
		if err := frame(ref, ref.RenderScene); err != nil {
			return err
		}
	}
	if st := ref.Diagnostics().LastFrame(); st.Failed {
		return fmt.Errorf("frame %d marked failed", st.Frame)
	}
	return nil
}

func checkDoubleBegin(ref renderer.RefInterface) error {
	if err := ref.BeginFrame(false); err != nil {
		return err
	}
	err := ref.BeginFrame(false)
	return errors.Join(err, ref.EndFrame())
}

func checkRenderOutside(ref renderer.RefInterface) error {
	return ref.RenderScene()
}

func checkNestedScene(ref renderer.RefInterface) error {
	return frame(ref, func() error {
		if err := ref.PushScene(); err != nil {
			return err
		}
		if ref.IsNormalPass() {
			return errors.New("normal pass reported inside a pushed scene")
		}
		if err := ref.RenderScene(); err != nil {
			return err
		}
		if err := ref.PopScene(); err != nil {
			return err
		}
		if !ref.IsNormalPass() {
			return errors.New("normal pass not restored by PopScene")
		}
		return ref.RenderScene()
	})
}

func checkUnbalancedPush(ref renderer.RefInterface) error {
	if err := ref.BeginFrame(false); err != nil {
		return err
	}
	if err := ref.PushScene(); err != nil {
		ref.EndFrame()
		return err
	}
	err := ref.EndFrame()
	if err != nil && !ref.Diagnostics().LastFrame().Failed {
		return errors.New("unbalanced frame not marked failed")
	}
	return err
}

var conformanceBox = &model.Model{
	Name: "models/conform.mdl",
	Type: model.TypeAlias,
	Mins: mgl32.Vec3{-8, -8, -8},
	Maxs: mgl32.Vec3{8, 8, 8},
}

func checkEntities(ref renderer.RefInterface) error {
	ahead := &entity.Entity{Index: 1, Origin: mgl32.Vec3{100, 0, 0}, Model: conformanceBox}
	behind := &entity.Entity{Index: 2, Origin: mgl32.Vec3{-100, 0, 0}, Model: conformanceBox}

	if ref.AddEntity(refapi.EntityNormal, ahead) {
		return errors.New("entity accepted outside a frame")
	}
	err := frame(ref, func() error {
		if !ref.AddEntity(refapi.EntityNormal, ahead) {
			return errors.New("visible entity rejected")
		}
		if ref.AddEntity(refapi.EntityNormal, behind) {
			return errors.New("entity behind the view accepted")
		}
		return ref.RenderScene()
	})
	if err != nil {
		return err
	}
	if got := ref.Diagnostics().LastFrame().Counters["entities"]; got != 1 {
		return fmt.Errorf("entities counter = %d, want 1", got)
	}
	return nil
}

func solid(w, h int, c [4]byte) *common.RGBData {
	buf := make([]byte, w*h*4)
	for i := 0; i < len(buf); i += 4 {
		copy(buf[i:], c[:])
	}
	return &common.RGBData{Width: w, Height: h, Type: common.PixelRGBA32, Buffer: buf}
}

func checkTextures(ref renderer.RefInterface) error {
	h := ref.LoadTextureFromBuffer("conform/Check", solid(4, 4, [4]byte{255, 0, 255, 255}), 0, false)
	if !h.Valid() {
		return errors.New("texture rejected")
	}
	if got := ref.FindTexture("CONFORM/check"); got != h {
		return fmt.Errorf("FindTexture = %v, want %v", got, h)
	}
	if again := ref.LoadTextureFromBuffer("conform/check", solid(4, 4, [4]byte{}), 0, true); again != h {
		return fmt.Errorf("update returned %v, want the existing %v", again, h)
	}
	ref.FreeTexture(h)
	if ref.FindTexture("conform/check").Valid() {
		return errors.New("texture still registered after FreeTexture")
	}
	return nil
}

func checkTriBatch(ref renderer.RefInterface) error {
	return frame(ref, func() error {
		ref.TriRenderMode(refapi.RenderTransAdd)
		b, err := ref.TriBegin(triapi.Quads)
		if err != nil {
			return err
		}
		for _, p := range []mgl32.Vec3{{50, -1, -1}, {50, 1, -1}, {50, 1, 1}, {50, -1, 1}} {
			if err := b.Vertex3fv(p); err != nil {
				return err
			}
		}
		return b.End()
	})
}

func checkTriOutside(ref renderer.RefInterface) error {
	_, err := ref.TriBegin(triapi.Triangles)
	return err
}

func checkStaleBatch(ref renderer.RefInterface) error {
	if err := ref.BeginFrame(false); err != nil {
		return err
	}
	b, err := ref.TriBegin(triapi.Lines)
	if err != nil {
		return errors.Join(err, ref.EndFrame())
	}
	if err := b.End(); err != nil {
		return errors.Join(err, ref.EndFrame())
	}
	return errors.Join(b.Vertex3f(0, 0, 0), ref.EndFrame())
}

func check2D(ref renderer.RefInterface) error {
	return frame(ref, func() error {
		ref.Set2DMode(true)
		ref.FillRGBA(0, 0, 8, 8, 255, 0, 0, 255)
		ref.FillRGBABlend(4, 4, 8, 8, 0, 0, 255, 128)
		ref.DrawStretchRaw(8, 8, 16, 16, 2, 2, solid(2, 2, [4]byte{0, 255, 0, 255}).Buffer, true)
		ref.Set2DMode(false)
		return nil
	})
}

func checkDecals(ref renderer.RefInterface) error {
	tex := ref.LoadTextureFromBuffer("{conform", solid(2, 2, [4]byte{0, 0, 0, 255}), 0, false)
	if !ref.DecalShoot(tex, 0, 1, mgl32.Vec3{1, 2, 3}, 0, 1) {
		return errors.New("decal rejected")
	}
	defer ref.FreeTexture(tex)
	defer ref.ClearAllDecals()

	list := ref.CreateDecalList()
	if len(list) != 1 || list[0].Position != (mgl32.Vec3{1, 2, 3}) {
		return fmt.Errorf("decal list = %+v", list)
	}
	if n := ref.DecalRemoveAll(tex); n != 1 {
		return fmt.Errorf("DecalRemoveAll = %d, want 1", n)
	}
	return nil
}
