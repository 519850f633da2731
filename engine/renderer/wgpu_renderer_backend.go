package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/camera"
	"github.com/Carmen-Shannon/oxy-ref/engine/scene"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	wgpuVertexStride   = 36
	wgpuUniformSize    = 80
	wgpuMaxTextureSize = 8192
)

var errReadbackUnsupported = errors.New("wgpu backend does not support framebuffer readback")

// wgpuShaderSource is the single shader every pipeline variant is built from. Group 0 holds the
// view, group 1 the texture being drawn.
const wgpuShaderSource = `
struct Camera {
	view_proj: mat4x4<f32>,
	position: vec3<f32>,
};

@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var tex: texture_2d<f32>;
@group(1) @binding(1) var samp: sampler;

struct VertexIn {
	@location(0) pos: vec3<f32>,
	@location(1) uv: vec2<f32>,
	@location(2) color: vec4<f32>,
};

struct VertexOut {
	@builtin(position) clip: vec4<f32>,
	@location(0) uv: vec2<f32>,
	@location(1) color: vec4<f32>,
};

@vertex
fn vs_main(in: VertexIn) -> VertexOut {
	var out: VertexOut;
	out.clip = camera.view_proj * vec4<f32>(in.pos, 1.0);
	out.uv = in.uv;
	out.color = in.color;
	return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
	return textureSample(tex, samp, in.uv) * in.color;
}
`

// wgpuPipelineKey identifies one render pipeline variant.
type wgpuPipelineKey struct {
	topology Topology
	blend    BlendMode
	depth    bool
	cull     bool
}

type wgpuTexture struct {
	tex     *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
	group   *wgpu.BindGroup
}

func (t *wgpuTexture) release() {
	if t == nil {
		return
	}
	if t.group != nil {
		t.group.Release()
	}
	if t.sampler != nil {
		t.sampler.Release()
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.tex != nil {
		t.tex.Release()
	}
}

type wgpuUniform struct {
	buf   *wgpu.Buffer
	group *wgpu.BindGroup
}

func (u *wgpuUniform) release() {
	if u == nil {
		return
	}
	if u.group != nil {
		u.group.Release()
	}
	if u.buf != nil {
		u.buf.Release()
	}
}

// wgpuDraw is one recorded indexed draw into the frame's shared vertex and index buffers.
type wgpuDraw struct {
	key     wgpuPipelineKey
	uniform *wgpuUniform
	tex     *wgpuTexture
	first   uint32
	count   uint32
}

// wgpuRendererBackend records every draw of a frame on the CPU and encodes one render pass at
// EndFrame.
type wgpuRendererBackend struct {
	mu  *sync.Mutex
	cfg backendConfig

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	width, height int

	msaaTexture  *wgpu.Texture
	msaaView     *wgpu.TextureView
	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	shader         *wgpu.ShaderModule
	cameraLayout   *wgpu.BindGroupLayout
	textureLayout  *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipelines      map[wgpuPipelineKey]*wgpu.RenderPipeline

	screen   *wgpuUniform
	scenes   []*wgpuUniform
	white    *wgpuTexture
	textures map[texture.Handle]*wgpuTexture

	// Frame recording.
	inFrame    bool
	clearColor wgpu.Color
	vertexData []byte
	vertices   uint32
	indices    []uint32
	draws      []wgpuDraw
	scenePass  int
	transient  []*wgpuTexture

	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Backend = &wgpuRendererBackend{}

func newWGPURendererBackend(cfg backendConfig) *wgpuRendererBackend {
	cfg.sampleCount = common.Coalesce(cfg.sampleCount, MSAAOff)
	b := &wgpuRendererBackend{
		mu:          &sync.Mutex{},
		cfg:         cfg,
		presentMode: wgpu.PresentModeImmediate,
		pipelines:   make(map[wgpuPipelineKey]*wgpu.RenderPipeline),
		textures:    make(map[texture.Handle]*wgpuTexture),
		clearColor:  wgpu.Color{A: 1},
	}
	if cfg.presentMode == PresentModeVSync {
		b.presentMode = wgpu.PresentModeFifo
	}
	return b
}

func (b *wgpuRendererBackend) Init(win window.Window, width, height int) error {
	if win == nil {
		return errors.New("wgpu backend requires a window")
	}
	desc := win.SurfaceDescriptor()
	if desc == nil {
		return errors.New("window has no presentable surface")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	runtime.LockOSThread()
	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(desc)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.releaseLocked()
		return fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Ref Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		b.releaseLocked()
		return fmt.Errorf("failed to request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	if err := b.configureSurfaceLocked(width, height); err != nil {
		b.releaseLocked()
		return err
	}
	if err := b.createSharedLocked(); err != nil {
		b.releaseLocked()
		return err
	}
	return nil
}

func (b *wgpuRendererBackend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

func (b *wgpuRendererBackend) Capabilities() Capabilities {
	ext := []string{"npot", "texture_clamp"}
	if b.cfg.sampleCount > MSAAOff {
		ext = append(ext, "msaa")
	}
	if b.cfg.presentMode == PresentModeVSync {
		ext = append(ext, "vsync")
	}
	return Capabilities{
		Name:           "wgpu",
		MaxTextureSize: wgpuMaxTextureSize,
		MaxUnits:       texture.MaxUnits,
		Extensions:     ext,
	}
}

func (b *wgpuRendererBackend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil || width <= 0 || height <= 0 {
		return
	}
	if err := b.configureSurfaceLocked(width, height); err != nil {
		logger.Errorf("resize to %dx%d failed: %v", width, height, err)
	}
}

func (b *wgpuRendererBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *wgpuRendererBackend) UploadTexture(h texture.Handle, name string, data common.TextureStagingData) error {
	if data.Width == 0 || data.Height == 0 || data.Width > wgpuMaxTextureSize || data.Height > wgpuMaxTextureSize {
		return fmt.Errorf("texture %s: unsupported size %dx%d", name, data.Width, data.Height)
	}
	if len(data.Pixels) != int(data.Width*data.Height*4) {
		return fmt.Errorf("texture %s: expected %d bytes, got %d", name, data.Width*data.Height*4, len(data.Pixels))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return errors.New("wgpu backend is not initialized")
	}
	t, err := b.createTextureLocked(name, data)
	if err != nil {
		return fmt.Errorf("texture %s: %w", name, err)
	}
	if old, ok := b.textures[h]; ok {
		old.release()
	}
	b.textures[h] = t
	return nil
}

func (b *wgpuRendererBackend) ReleaseTexture(h texture.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.textures[h]; ok {
		t.release()
		delete(b.textures, h)
	}
}

func (b *wgpuRendererBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return errors.New("wgpu backend is not initialized")
	}
	if b.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}
	b.resetFrameLocked()
	b.inFrame = true

	ortho := mgl32.Ortho(0, float32(b.width), float32(b.height), 0, -1, 1)
	u := camera.GPUCameraUniform{ViewProj: ortho}
	b.queue.WriteBuffer(b.screen.buf, 0, u.Marshal())
	return nil
}

func (b *wgpuRendererBackend) Clear(c color.RGBA) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearColor = wgpu.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
	// Everything recorded so far is covered by the clear.
	b.vertexData = b.vertexData[:0]
	b.vertices = 0
	b.indices = b.indices[:0]
	b.draws = b.draws[:0]
}

func (b *wgpuRendererBackend) DrawScene(list scene.DrawList, cam camera.Camera) error {
	batches := sceneGeometry(list)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return errors.New("DrawScene outside of a frame")
	}
	u, err := b.nextSceneUniformLocked()
	if err != nil {
		return err
	}
	gu := camera.Uniform(cam)
	b.queue.WriteBuffer(u.buf, 0, gu.Marshal())

	for _, gb := range batches {
		key := wgpuPipelineKey{topology: gb.Topology, blend: gb.Blend, depth: true}
		b.appendLocked(key, u, b.lookupLocked(gb.Texture), gb.Vertices, gb.Indices)
	}
	return nil
}

func (b *wgpuRendererBackend) DrawBatch(d triapi.Data) error {
	topo, idx := expandPrimitive(d.Primitive, len(d.Vertices))

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return errors.New("DrawBatch outside of a frame")
	}
	u, err := b.currentSceneUniformLocked()
	if err != nil {
		return err
	}
	key := wgpuPipelineKey{
		topology: topo,
		blend:    BlendForRenderMode(d.State.RenderMode),
		depth:    true,
		cull:     d.State.Cull == triapi.CullFront,
	}
	b.appendLocked(key, u, b.lookupLocked(d.State.Texture), d.Vertices, idx)
	return nil
}

func (b *wgpuRendererBackend) Fill(rect image.Rectangle, c color.RGBA, mode BlendMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame || rect.Empty() {
		return
	}
	verts, idx := screenQuad(rect, [4]float32{0, 0, 1, 1}, c)
	b.appendLocked(wgpuPipelineKey{topology: TopologyTriangles, blend: mode}, b.screen, b.white, verts, idx)
}

func (b *wgpuRendererBackend) Blit(rect image.Rectangle, h texture.Handle, st [4]float32, tint color.RGBA, mode BlendMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return errors.New("Blit outside of a frame")
	}
	t, ok := b.textures[h]
	if !ok {
		return fmt.Errorf("texture %s was never uploaded", h)
	}
	verts, idx := screenQuad(rect, st, tint)
	b.appendLocked(wgpuPipelineKey{topology: TopologyTriangles, blend: mode}, b.screen, t, verts, idx)
	return nil
}

func (b *wgpuRendererBackend) BlitRaw(rect image.Rectangle, img *image.RGBA) error {
	if img == nil {
		return errors.New("nil raw image")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return errors.New("BlitRaw outside of a frame")
	}
	t, err := b.createTextureLocked("raw", common.TextureStagingData{
		Pixels: img.Pix,
		Width:  uint32(img.Rect.Dx()),
		Height: uint32(img.Rect.Dy()),
		Clamp:  true,
	})
	if err != nil {
		return err
	}
	b.transient = append(b.transient, t)
	verts, idx := screenQuad(rect, [4]float32{0, 0, 1, 1}, color.RGBA{255, 255, 255, 255})
	b.appendLocked(wgpuPipelineKey{topology: TopologyTriangles, blend: BlendNone}, b.screen, t, verts, idx)
	return nil
}

func (b *wgpuRendererBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return errors.New("wgpu backend: EndFrame without BeginFrame")
	}
	b.inFrame = false
	defer b.releaseTransientLocked()

	pipelines := make([]*wgpu.RenderPipeline, len(b.draws))
	for i, d := range b.draws {
		p, err := b.pipelineLocked(d.key)
		if err != nil {
			return fmt.Errorf("failed to create pipeline %+v: %w", d.key, err)
		}
		pipelines[i] = p
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	var vbuf, ibuf *wgpu.Buffer
	if len(b.draws) > 0 {
		vbuf, ibuf, err = b.createFrameBuffersLocked()
		if err != nil {
			encoder.Release()
			view.Release()
			surfaceTexture.Release()
			return err
		}
		defer vbuf.Release()
		defer ibuf.Release()
	}

	pass := encoder.BeginRenderPass(b.passDescriptorLocked(view))
	if len(b.draws) > 0 {
		pass.SetVertexBuffer(0, vbuf, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(ibuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
	for i, d := range b.draws {
		pass.SetPipeline(pipelines[i])
		pass.SetBindGroup(0, d.uniform.group, nil)
		pass.SetBindGroup(1, d.tex.group, nil)
		pass.DrawIndexed(d.count, 1, d.first, 0, 0)
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		view.Release()
		surfaceTexture.Release()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.frameView.Release()
	b.frameSurface.Release()
	b.frameView = nil
	b.frameSurface = nil
}

func (b *wgpuRendererBackend) ReadPixels() (*image.RGBA, error) {
	return nil, errReadbackUnsupported
}

func (b *wgpuRendererBackend) configureSurfaceLocked(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("surface reports no usable formats")
	}
	b.surfaceFormat = capabilities.Formats[0]
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.width, b.height = width, height

	b.releaseTargetsLocked()
	count := uint32(b.cfg.sampleCount)
	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	if count > 1 {
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("failed to create MSAA target: %w", err)
		}
		b.msaaTexture = tex
		if b.msaaView, err = tex.CreateView(nil); err != nil {
			return fmt.Errorf("failed to create MSAA view: %w", err)
		}
	}

	depth, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth target: %w", err)
	}
	b.depthTexture = depth
	if b.depthView, err = depth.CreateView(nil); err != nil {
		return fmt.Errorf("failed to create depth view: %w", err)
	}

	// Pipelines are tied to the surface format, which may change on reconfigure.
	for k, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, k)
	}
	return nil
}

func (b *wgpuRendererBackend) createSharedLocked() error {
	shader, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Ref Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: wgpuShaderSource,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to compile shader: %w", err)
	}
	b.shader = shader

	cameraEntry := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: wgpu.ShaderStageVertex}
	cameraEntry.Buffer.Type = wgpu.BufferBindingTypeUniform
	cameraEntry.Buffer.MinBindingSize = wgpuUniformSize
	if b.cameraLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Camera Layout",
		Entries: []wgpu.BindGroupLayoutEntry{cameraEntry},
	}); err != nil {
		return fmt.Errorf("failed to create camera layout: %w", err)
	}

	texEntry := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: wgpu.ShaderStageFragment}
	texEntry.Texture.SampleType = wgpu.TextureSampleTypeFloat
	texEntry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	sampEntry := wgpu.BindGroupLayoutEntry{Binding: 1, Visibility: wgpu.ShaderStageFragment}
	sampEntry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	if b.textureLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Texture Layout",
		Entries: []wgpu.BindGroupLayoutEntry{texEntry, sampEntry},
	}); err != nil {
		return fmt.Errorf("failed to create texture layout: %w", err)
	}

	if b.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Ref Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.cameraLayout, b.textureLayout},
	}); err != nil {
		return fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	if b.screen, err = b.createUniformLocked("Screen Uniform"); err != nil {
		return err
	}
	b.white, err = b.createTextureLocked("white", common.TextureStagingData{
		Pixels:  []byte{255, 255, 255, 255},
		Width:   1,
		Height:  1,
		Nearest: true,
	})
	return err
}

func (b *wgpuRendererBackend) createUniformLocked(label string) (*wgpuUniform, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  wgpuUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: b.cameraLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}},
	})
	if err != nil {
		buf.Release()
		return nil, fmt.Errorf("failed to create %s bind group: %w", label, err)
	}
	return &wgpuUniform{buf: buf, group: group}, nil
}

func (b *wgpuRendererBackend) createTextureLocked(label string, data common.TextureStagingData) (*wgpuTexture, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label + " Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	t := &wgpuTexture{tex: tex}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)

	if t.view, err = tex.CreateView(nil); err != nil {
		t.release()
		return nil, err
	}

	filter, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	if data.Nearest {
		filter, mip = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	}
	address := wgpu.AddressModeRepeat
	if data.Clamp {
		address = wgpu.AddressModeClampToEdge
	}
	if t.sampler, err = b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}); err != nil {
		t.release()
		return nil, err
	}

	if t.group, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: b.textureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: t.view},
			{Binding: 1, Sampler: t.sampler},
		},
	}); err != nil {
		t.release()
		return nil, err
	}
	return t, nil
}

func (b *wgpuRendererBackend) pipelineLocked(key wgpuPipelineKey) (*wgpu.RenderPipeline, error) {
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}

	topology := wgpu.PrimitiveTopologyTriangleList
	switch key.topology {
	case TopologyLines:
		topology = wgpu.PrimitiveTopologyLineList
	case TopologyPoints:
		topology = wgpu.PrimitiveTopologyPointList
	}

	target := wgpu.ColorTargetState{
		Format:    b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	switch key.blend {
	case BlendAlpha:
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
		}
	case BlendAdditive:
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorZero, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
		}
	}

	cull := wgpu.CullModeNone
	if key.cull {
		cull = wgpu.CullModeBack
	}
	depthCompare := wgpu.CompareFunctionAlways
	if key.depth {
		depthCompare = wgpu.CompareFunctionLess
	}
	// Only opaque 3D geometry writes depth; 2D and translucent draws layer in submission order.
	depthWrite := key.depth && key.blend == BlendNone

	p, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("Ref Pipeline %d/%s/%t/%t", key.topology, key.blend, key.depth, key.cull),
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     b.shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: wgpuVertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 20, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.shader,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.cfg.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: depthWrite,
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	b.pipelines[key] = p
	return p, nil
}

func (b *wgpuRendererBackend) passDescriptorLocked(view *wgpu.TextureView) *wgpu.RenderPassDescriptor {
	attachment := wgpu.RenderPassColorAttachment{
		View:       view,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: b.clearColor,
	}
	if b.msaaView != nil {
		attachment.View = b.msaaView
		attachment.ResolveTarget = view
		attachment.StoreOp = wgpu.StoreOpDiscard
	}
	return &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
}

func (b *wgpuRendererBackend) createFrameBuffersLocked() (*wgpu.Buffer, *wgpu.Buffer, error) {
	vbuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Vertex Buffer",
		Size:  uint64(len(b.vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create vertex buffer: %w", err)
	}
	idx := make([]byte, len(b.indices)*4)
	for i, v := range b.indices {
		binary.LittleEndian.PutUint32(idx[i*4:], v)
	}
	ibuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Index Buffer",
		Size:  uint64(len(idx)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vbuf.Release()
		return nil, nil, fmt.Errorf("failed to create index buffer: %w", err)
	}
	b.queue.WriteBuffer(vbuf, 0, b.vertexData)
	b.queue.WriteBuffer(ibuf, 0, idx)
	return vbuf, ibuf, nil
}

// appendLocked records verts and idx as one draw. Indices are rebased onto the frame buffers.
func (b *wgpuRendererBackend) appendLocked(key wgpuPipelineKey, u *wgpuUniform, t *wgpuTexture, verts []triapi.Vertex, idx []uint32) {
	if len(idx) == 0 {
		return
	}
	first := uint32(len(b.indices))
	for _, i := range idx {
		b.indices = append(b.indices, b.vertices+i)
	}
	b.vertexData = appendVertices(b.vertexData, verts)
	b.vertices += uint32(len(verts))
	b.draws = append(b.draws, wgpuDraw{key: key, uniform: u, tex: t, first: first, count: uint32(len(idx))})
}

func (b *wgpuRendererBackend) lookupLocked(h texture.Handle) *wgpuTexture {
	if t, ok := b.textures[h]; ok {
		return t
	}
	return b.white
}

func (b *wgpuRendererBackend) nextSceneUniformLocked() (*wgpuUniform, error) {
	if b.scenePass == len(b.scenes) {
		u, err := b.createUniformLocked(fmt.Sprintf("Scene Uniform %d", b.scenePass))
		if err != nil {
			return nil, err
		}
		b.scenes = append(b.scenes, u)
	}
	u := b.scenes[b.scenePass]
	b.scenePass++
	return u, nil
}

// currentSceneUniformLocked returns the view of the latest scene pass, or an identity view when
// no pass was drawn this frame.
func (b *wgpuRendererBackend) currentSceneUniformLocked() (*wgpuUniform, error) {
	if b.scenePass > 0 {
		return b.scenes[b.scenePass-1], nil
	}
	u, err := b.nextSceneUniformLocked()
	if err != nil {
		return nil, err
	}
	gu := camera.GPUCameraUniform{ViewProj: mgl32.Ident4()}
	b.queue.WriteBuffer(u.buf, 0, gu.Marshal())
	return u, nil
}

func (b *wgpuRendererBackend) resetFrameLocked() {
	b.vertexData = b.vertexData[:0]
	b.vertices = 0
	b.indices = b.indices[:0]
	b.draws = b.draws[:0]
	b.scenePass = 0
}

func (b *wgpuRendererBackend) releaseTransientLocked() {
	for _, t := range b.transient {
		t.release()
	}
	b.transient = b.transient[:0]
}

func (b *wgpuRendererBackend) releaseTargetsLocked() {
	if b.msaaView != nil {
		b.msaaView.Release()
		b.msaaView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.depthView != nil {
		b.depthView.Release()
		b.depthView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *wgpuRendererBackend) releaseLocked() {
	b.inFrame = false
	b.resetFrameLocked()
	b.releaseTransientLocked()
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	for h, t := range b.textures {
		t.release()
		delete(b.textures, h)
	}
	b.white.release()
	b.white = nil
	for _, u := range b.scenes {
		u.release()
	}
	b.scenes = nil
	b.screen.release()
	b.screen = nil
	for k, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, k)
	}
	if b.pipelineLayout != nil {
		b.pipelineLayout.Release()
		b.pipelineLayout = nil
	}
	if b.textureLayout != nil {
		b.textureLayout.Release()
		b.textureLayout = nil
	}
	if b.cameraLayout != nil {
		b.cameraLayout.Release()
		b.cameraLayout = nil
	}
	if b.shader != nil {
		b.shader.Release()
		b.shader = nil
	}
	b.releaseTargetsLocked()
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
	b.width, b.height = 0, 0
}

// screenQuad returns two triangles covering rect with texture coordinates st.
func screenQuad(rect image.Rectangle, st [4]float32, c color.RGBA) ([]triapi.Vertex, []uint32) {
	x0, y0 := float32(rect.Min.X), float32(rect.Min.Y)
	x1, y1 := float32(rect.Max.X), float32(rect.Max.Y)
	col := [4]uint8{c.R, c.G, c.B, c.A}
	verts := []triapi.Vertex{
		{Pos: mgl32.Vec3{x0, y0, 0}, UV: mgl32.Vec2{st[0], st[1]}, Color: col},
		{Pos: mgl32.Vec3{x1, y0, 0}, UV: mgl32.Vec2{st[2], st[1]}, Color: col},
		{Pos: mgl32.Vec3{x1, y1, 0}, UV: mgl32.Vec2{st[2], st[3]}, Color: col},
		{Pos: mgl32.Vec3{x0, y1, 0}, UV: mgl32.Vec2{st[0], st[3]}, Color: col},
	}
	return verts, []uint32{0, 1, 2, 0, 2, 3}
}

// appendVertices encodes verts in the shader's vertex layout: position, uv, normalized colour.
func appendVertices(dst []byte, verts []triapi.Vertex) []byte {
	var f [9]float32
	for _, v := range verts {
		f[0], f[1], f[2] = v.Pos[0], v.Pos[1], v.Pos[2]
		f[3], f[4] = v.UV[0], v.UV[1]
		for i := range 4 {
			f[5+i] = float32(v.Color[i]) / 255
		}
		for _, x := range f {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(x))
		}
	}
	return dst
}
