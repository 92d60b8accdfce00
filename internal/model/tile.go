package model

// Tile flag bits. Rotation is a two bit field at RotateShift.
const (
	TileFlagVFlip  uint8 = 1 << 0
	TileFlagHFlip  uint8 = 1 << 1
	TileFlagOpaque uint8 = 1 << 2

	RotateShift    = 3
	TileFlagRotate = uint8(3 << RotateShift)
	quarterTurn    = 90
)

// Tile is a cell of a tile layer.
type Tile struct {
	Index    uint8 // Cell of the tile set
	Flags    uint8
	Skip     uint8 // Run length hint
	Reserved uint8
}

func (t *Tile) flag(mask uint8) bool {
	return t.Flags&mask != 0
}

func (t *Tile) setFlag(mask uint8, on bool) {
	if on {
		t.Flags |= mask
	} else {
		t.Flags &^= mask
	}
}

// VFlip reports whether the tile is flipped vertically.
func (t *Tile) VFlip() bool { return t.flag(TileFlagVFlip) }

// SetVFlip sets or clears the vertical flip bit.
func (t *Tile) SetVFlip(on bool) { t.setFlag(TileFlagVFlip, on) }

// HFlip reports whether the tile is flipped horizontally.
func (t *Tile) HFlip() bool { return t.flag(TileFlagHFlip) }

// SetHFlip sets or clears the horizontal flip bit.
func (t *Tile) SetHFlip(on bool) { t.setFlag(TileFlagHFlip, on) }

// Opaque reports whether the tile is fully opaque.
func (t *Tile) Opaque() bool { return t.flag(TileFlagOpaque) }

// SetOpaque sets or clears the opaque bit.
func (t *Tile) SetOpaque(on bool) { t.setFlag(TileFlagOpaque, on) }

// Rotation returns the rotation in degrees: 0, 90, 180 or 270.
func (t *Tile) Rotation() int {
	return int((t.Flags&TileFlagRotate)>>RotateShift) * quarterTurn
}

// SetRotation stores a rotation of 0, 90, 180 or 270 degrees. Other angles
// fail with a *ValueError and leave the flags untouched.
func (t *Tile) SetRotation(degrees int) error {
	if degrees < 0 || degrees > 270 || degrees%quarterTurn != 0 {
		return &ValueError{What: "tile rotation", Value: degrees}
	}
	quarter := uint8(degrees / quarterTurn)
	t.Flags = t.Flags&^TileFlagRotate | quarter<<RotateShift
	return nil
}
