package host

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// imageExtensions are tried in order when a name has no extension.
var imageExtensions = []string{".png", ".bmp", ".tif", ".jpg"}

// Client is the engine helper table handed to the renderer. It reads images from a game
// directory and carries the client clock the host advances each frame.
type Client struct {
	mu   *sync.Mutex
	root string
	time float64
	mode refapi.RenderMode
}

var _ refapi.EngineAPI = &Client{}

// NewClient creates a Client reading files below root.
//
// Parameters:
//   - root: the game directory; names passed to LoadImage are relative to it
//
// Returns:
//   - *Client: the client with its clock at zero
func NewClient(root string) *Client {
	return &Client{
		mu:   &sync.Mutex{},
		root: root,
	}
}

func (c *Client) TriGetRenderMode() refapi.RenderMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetRenderMode selects the render mode reported for the next 2D sprite draw.
func (c *Client) SetRenderMode(mode refapi.RenderMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

func (c *Client) ClientTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// SetClientTime moves the client clock to t seconds.
func (c *Client) SetClientTime(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = t
}

// Advance moves the client clock forward by dt seconds and returns the new time.
// Negative and non-finite steps are ignored.
func (c *Client) Advance(dt float32) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := float64(dt)
	if step > 0 && !math.IsInf(step, 0) {
		c.time += step
	}
	return c.time
}

// Root returns the game directory.
func (c *Client) Root() string {
	return c.root
}

func (c *Client) LoadImage(name string) (*common.RGBData, bool) {
	if name == "" {
		return nil, false
	}
	candidates := []string{name}
	if path.Ext(name) == "" {
		for _, ext := range imageExtensions {
			candidates = append(candidates, name+ext)
		}
	}

	for _, candidate := range candidates {
		img, err := c.decode(candidate)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Debugf("load image %s: %v", candidate, err)
			}
			continue
		}
		return common.FromImage(img), true
	}
	return nil, false
}

func (c *Client) decode(name string) (image.Image, error) {
	f, err := os.Open(filepath.Join(c.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
