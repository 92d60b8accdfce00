package model

import (
	"errors"
	"testing"
)

func TestTileFlip(t *testing.T) {
	tile := Tile{Index: 7, Flags: 0x12}
	tile.SetVFlip(true)
	if !tile.VFlip() || tile.Flags != 0x13 {
		t.Errorf("SetVFlip(true): Flags = %#x", tile.Flags)
	}
	tile.SetVFlip(false)
	if tile.VFlip() || tile.Flags != 0x12 {
		t.Errorf("SetVFlip(false): Flags = %#x, want 0x12", tile.Flags)
	}
	if !tile.HFlip() {
		t.Errorf("HFlip = false, want true")
	}
	if tile.Index != 7 {
		t.Errorf("Index changed to %d", tile.Index)
	}
}

func TestTileFlagsIndependent(t *testing.T) {
	var tile Tile
	tile.SetHFlip(true)
	tile.SetOpaque(true)
	if err := tile.SetRotation(270); err != nil {
		t.Fatalf("SetRotation failed: %v", err)
	}
	tile.SetHFlip(false)
	if tile.VFlip() || tile.HFlip() || !tile.Opaque() || tile.Rotation() != 270 {
		t.Errorf("Flags = %#x", tile.Flags)
	}
}

func TestTileRotation(t *testing.T) {
	for quarter, want := range []int{0, 90, 180, 270} {
		tile := Tile{Flags: uint8(quarter) << RotateShift}
		if got := tile.Rotation(); got != want {
			t.Errorf("rotation bits %d: Rotation = %d, want %d", quarter, got, want)
		}

		var set Tile
		set.SetVFlip(true)
		if err := set.SetRotation(want); err != nil {
			t.Fatalf("SetRotation(%d) failed: %v", want, err)
		}
		if set.Rotation() != want || !set.VFlip() {
			t.Errorf("SetRotation(%d): Flags = %#x", want, set.Flags)
		}
	}
}

func TestTileSetRotationInvalid(t *testing.T) {
	tile := Tile{Flags: TileFlagOpaque | 1<<RotateShift}
	for _, deg := range []int{45, -90, 360} {
		err := tile.SetRotation(deg)
		var ve *ValueError
		if !errors.As(err, &ve) || ve.Value != deg {
			t.Errorf("SetRotation(%d) error = %v, want *ValueError", deg, err)
		}
		if !errors.Is(err, ErrValue) {
			t.Errorf("SetRotation(%d) error does not match ErrValue", deg)
		}
	}
	if tile.Rotation() != 90 || !tile.Opaque() {
		t.Errorf("failed SetRotation changed Flags to %#x", tile.Flags)
	}
}

func TestLayerKindOf(t *testing.T) {
	tests := []struct {
		game int32
		want LayerKind
	}{
		{0, KindNormal},
		{1, KindGame},
		{2, KindTele},
		{3, KindReserved},
		{4, KindSpeedup},
		{8, KindReserved},
		{-1, KindReserved},
	}
	for _, tt := range tests {
		if got := LayerKindOf(tt.game); got != tt.want {
			t.Errorf("LayerKindOf(%d) = %v, want %v", tt.game, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	img := &Image{Name: "grass"}
	env := &Envelope{Name: "fade"}
	m := &Map{Images: []*Image{img}, Envelopes: []*Envelope{nil, env}}

	if ResolveImage(m, 0) != img {
		t.Errorf("ResolveImage(0) did not return the image")
	}
	if ResolveImage(m, -1) != nil || ResolveImage(m, 1) != nil {
		t.Errorf("ResolveImage out of range returned an image")
	}
	if ResolveEnvelope(m, 1) != env || ResolveEnvelope(m, 0) != nil || ResolveEnvelope(m, 2) != nil {
		t.Errorf("ResolveEnvelope returned the wrong envelope")
	}
}

func TestNewTileLayer(t *testing.T) {
	l := NewTileLayer()
	tl := l.Tiles
	if tl.Width != 50 || tl.Height != 50 || len(tl.Tiles) != 2500 {
		t.Fatalf("size = %dx%d with %d tiles", tl.Width, tl.Height, len(tl.Tiles))
	}
	tl.At(3, 2).Index = 9
	if tl.Tiles[2*50+3].Index != 9 {
		t.Errorf("At(3, 2) does not address row 2, column 3")
	}
	if l.String() != "normal layer (50x50)" {
		t.Errorf("String = %q", l.String())
	}
}

func TestGroupDefaults(t *testing.T) {
	g := NewGroup()
	if g.ParallaxX != 100 || g.ParallaxY != 100 || g.Clipped() {
		t.Errorf("NewGroup = %+v", g)
	}
	g.DefaultBackground()
	if g.ParallaxX != 0 || g.ParallaxY != 0 {
		t.Errorf("DefaultBackground left parallax %d,%d", g.ParallaxX, g.ParallaxY)
	}
	g.AddLayer(NewQuadLayer())
	if len(g.Layers) != 1 || g.Layers[0].Name() != "" {
		t.Errorf("Layers = %v", g.Layers)
	}
}
