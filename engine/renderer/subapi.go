package renderer

import "github.com/Carmen-Shannon/oxy-ref/engine/refapi"

// The sub-interface blocks are versioned independently of the main table and carry no
// behaviour in this renderer beyond their version.

type renderAPI struct{}

var _ refapi.RenderAPI = &renderAPI{}

func (a *renderAPI) Version() int { return refapi.RenderAPIVersion }

// renderInterface is used when the host does not supply its own client render callbacks.
type renderInterface struct{}

var _ refapi.RenderInterface = &renderInterface{}

func (i *renderInterface) Version() int { return refapi.RenderInterfaceVersion }

type vguiAPI struct{}

var _ refapi.VGuiAPI = &vguiAPI{}

func (v *vguiAPI) Version() int { return refapi.VGuiAPIVersion }

type efxAPI struct{}

var _ refapi.EfxAPI = &efxAPI{}

func (e *efxAPI) Version() int { return refapi.EfxAPIVersion }
