package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
)

// Unit selects a multi-texturing slot. It addresses binding state only and is never a resource identity.
type Unit int

const (
	// KeepUnit leaves the currently active unit selected.
	KeepUnit Unit = -1
	Unit0    Unit = 0
	Unit1    Unit = 1
	Unit2    Unit = 2
	Unit3    Unit = 3
	Unit4    Unit = 4
	// MaxUnits caps the number of addressable units.
	MaxUnits = 32
)

// units tracks which texture is bound on each unit and which unit is active.
type units struct {
	active Unit
	bound  [MaxUnits]Handle
}

func (u *units) bind(unit Unit, h Handle) error {
	if unit == KeepUnit {
		unit = u.active
	}
	if unit < 0 || unit >= MaxUnits {
		return fmt.Errorf("%w: texture unit %d out of range [0, %d)", refapi.ErrProtocolViolation, unit, MaxUnits)
	}
	u.active = unit
	u.bound[unit] = h
	return nil
}

func (u *units) unbindAll(h Handle) {
	for i := range u.bound {
		if u.bound[i] == h {
			u.bound[i] = None
		}
	}
}
