// Package camera derives the view and projection of a render pass from the global render state
// the host publishes.
package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/go-gl/mathgl/mgl32"
)

// Default clip plane distances in world units.
const (
	DefaultNear float32 = 4
	DefaultFar  float32 = 8192
)

type cameraImpl struct {
	mu *sync.Mutex

	near float32
	far  float32

	origin   mgl32.Vec3
	forward  mgl32.Vec3
	viewport [4]int
	fovX     float32
	fovY     float32

	viewMatrix           mgl32.Mat4
	projectionMatrix     mgl32.Mat4
	viewProjectionMatrix mgl32.Mat4
	frustum              common.Frustum
}

// Camera holds the view state of the current pass and the matrices computed from it.
type Camera interface {
	// Update recomputes every matrix from the host's global render state.
	//
	// Parameters:
	//   - g: the globals; a nil value is ignored
	Update(g *refapi.Globals)

	// Origin returns the view origin of the last Update.
	Origin() mgl32.Vec3

	// Forward returns the view direction of the last Update.
	Forward() mgl32.Vec3

	// Viewport returns x, y, width, height in pixels.
	Viewport() [4]int

	// Fov returns the horizontal and vertical field of view in degrees.
	Fov() (x, y float32)

	// Near returns the near plane distance.
	Near() float32

	// Far returns the far plane distance.
	Far() float32

	// ViewMatrix returns the world-to-eye matrix.
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the eye-to-clip matrix.
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns projection * view.
	ViewProjectionMatrix() mgl32.Mat4

	// Frustum returns the culling planes of the view-projection matrix.
	Frustum() common.Frustum

	// SetNear sets the near plane distance. Takes effect on the next Update.
	SetNear(near float32)

	// SetFar sets the far plane distance. Takes effect on the next Update.
	SetFar(far float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera looking down +X from the origin with a 90 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:   &sync.Mutex{},
		near: DefaultNear,
		far:  DefaultFar,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices(&refapi.Globals{
		Width:    640,
		Height:   480,
		FovX:     90,
		VForward: mgl32.Vec3{1, 0, 0},
		VUp:      mgl32.Vec3{0, 0, 1},
	})
	return c
}

func (c *cameraImpl) Update(g *refapi.Globals) {
	if g == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices(g)
}

func (c *cameraImpl) Origin() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin
}

func (c *cameraImpl) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward
}

func (c *cameraImpl) Viewport() [4]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *cameraImpl) Fov() (x, y float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fovX, c.fovY
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
}

// updateMatrices recalculates the view, projection and view-projection matrices and the frustum.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices(g *refapi.Globals) {
	w, h := max(g.Width, 1), max(g.Height, 1)
	aspect := float32(w) / float32(h)

	c.origin = g.ViewOrg
	c.forward = g.VForward
	if c.forward.Len() == 0 {
		c.forward, _, _ = common.AngleVectors(g.ViewAngles)
	}
	up := g.VUp
	if up.Len() == 0 {
		_, _, up = common.AngleVectors(g.ViewAngles)
	}
	c.viewport = [4]int{0, 0, w, h}

	c.fovX, c.fovY = g.FovX, g.FovY
	if c.fovX <= 0 {
		c.fovX = 90
	}
	if c.fovY <= 0 {
		c.fovY = CalcFovY(c.fovX, float32(w), float32(h))
	}

	c.viewMatrix = mgl32.LookAtV(c.origin, c.origin.Add(c.forward), up)
	c.projectionMatrix = mgl32.Perspective(mgl32.DegToRad(c.fovY), aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
	c.frustum = common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}

// CalcFovY returns the vertical field of view matching fovX on a width x height viewport.
//
// Parameters:
//   - fovX: the horizontal field of view in degrees
//   - width, height: the viewport size
//
// Returns:
//   - float32: the vertical field of view in degrees
func CalcFovY(fovX, width, height float32) float32 {
	if fovX < 1 || fovX > 179 {
		fovX = 90
	}
	x := float64(width) / math.Tan(float64(fovX)/360*math.Pi)
	y := math.Atan(float64(height)/x) * 360 / math.Pi
	return float32(y)
}
