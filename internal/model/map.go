package model

import "fmt"

// Map represents a decoded map container in a format-agnostic way.
// Entities are snapshots of the decoded items; after loading they are owned
// by a single caller and carry no synchronization.
type Map struct {
	Version      int32
	Info         *Info
	Images       []*Image
	Envelopes    []*Envelope
	Envpoints    []Envpoint // global pool referenced by envelopes
	Groups       []*Group
	Layers       []*Layer // every layer in item order, including grouped ones
	Unrecognized []RawItem
	Failures     []Failure
	Advisories   []string
}

// ItemType is the container's item type tag
type ItemType int

const (
	ItemVersion ItemType = iota
	ItemInfo
	ItemImage
	ItemEnvelope
	ItemGroup
	ItemLayer
	ItemEnvpoints
)

var itemTypeNames = [...]string{
	ItemVersion:   "version",
	ItemInfo:      "info",
	ItemImage:     "image",
	ItemEnvelope:  "envelope",
	ItemGroup:     "group",
	ItemLayer:     "layer",
	ItemEnvpoints: "envpoints",
}

// Known reports whether t is one of the item types this package decodes.
func (t ItemType) Known() bool {
	return t >= ItemVersion && int(t) < len(itemTypeNames)
}

func (t ItemType) String() string {
	if t.Known() {
		return itemTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// LayerType is the layer sub-type stored in the second word of a layer item
type LayerType int32

const (
	LayerInvalid LayerType = iota
	LayerGame
	LayerTiles
	LayerQuads
)

func (t LayerType) String() string {
	switch t {
	case LayerGame:
		return "game"
	case LayerTiles:
		return "tiles"
	case LayerQuads:
		return "quads"
	}
	return fmt.Sprintf("layer(%d)", int32(t))
}

// LayerKind classifies a tile layer by its raw game flag
type LayerKind int

const (
	KindNormal   LayerKind = iota // 0 or absent
	KindGame                      // 1
	KindTele                      // 2
	KindSpeedup                   // 4
	KindReserved                  // any other value
)

// LayerKindOf maps the raw game word of a tile layer to its kind.
func LayerKindOf(game int32) LayerKind {
	switch game {
	case 0:
		return KindNormal
	case 1:
		return KindGame
	case 2:
		return KindTele
	case 4:
		return KindSpeedup
	}
	return KindReserved
}

func (k LayerKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindGame:
		return "game"
	case KindTele:
		return "tele"
	case KindSpeedup:
		return "speedup"
	}
	return "reserved"
}

// CurveType is the interpolation used between two envpoints
type CurveType int32

const (
	CurveStep CurveType = iota
	CurveLinear
	CurveSlow
	CurveFast
	CurveSmooth
	CurveBezier
)

func (c CurveType) String() string {
	switch c {
	case CurveStep:
		return "step"
	case CurveLinear:
		return "linear"
	case CurveSlow:
		return "slow"
	case CurveFast:
		return "fast"
	case CurveSmooth:
		return "smooth"
	case CurveBezier:
		return "bezier"
	}
	return fmt.Sprintf("curve(%d)", int32(c))
}

// Source records where an entity came from in the container. Round-trip
// encoders use it to reproduce the original word count and any words past
// the layout this package understands.
type Source struct {
	ID       int     // Item id within its type
	Words    int     // Original payload length in words (0 = built in memory)
	Trailing []int32 // Words past the known layout
}

// Info holds the map metadata. Absent text fields are nil.
type Info struct {
	Version    int32
	Author     *string
	MapVersion *string
	Credits    *string
	License    *string
	Settings   []string // Server setting commands in stored order
}

// Image is either embedded RGBA8888 data or a reference to an external
// resource by name.
type Image struct {
	Version   int32
	Width     int32
	Height    int32
	External  bool
	Name      string
	Data      []byte // width*height*4 bytes, nil when External
	NameData  int32  // Pool index of the name blob
	ImageData int32  // Pool index of the pixel blob
	Source
}

// Resolution returns a "W x H" description of the image size.
func (img *Image) Resolution() string {
	return fmt.Sprintf("%d x %d", img.Width, img.Height)
}

// Envelope is a keyframed animation curve. Its points live in the map's
// global envpoint pool.
type Envelope struct {
	Version      int32
	Channels     int32 // 1 = position (x, y, rotation), 4 = color (r, g, b, a)
	StartPoint   int32
	NumPoints    int32
	Name         string
	Synchronized bool // version >= 2 only
	Source
}

// Points returns the slice of pool belonging to the envelope. The caller must
// pass the pool the envelope was decoded against.
func (e *Envelope) Points(pool []Envpoint) []Envpoint {
	return pool[e.StartPoint : e.StartPoint+e.NumPoints]
}

// Envpoint is one keyframe. Only the first Channels values of the owning
// envelope are meaningful.
type Envpoint struct {
	Time   int32 // Milliseconds
	Curve  CurveType
	Values [4]int32 // Fixed point
}

// Group is a set of layers sharing offset, parallax and clipping.
type Group struct {
	Version     int32
	OffsetX     int32
	OffsetY     int32
	ParallaxX   int32
	ParallaxY   int32
	StartLayer  int32
	NumLayers   int32
	UseClipping int32
	ClipX       int32
	ClipY       int32
	ClipW       int32
	ClipH       int32
	Name        string // version >= 3 only
	Layers      []*Layer
	Source
}

// NewGroup returns a group with the editor defaults.
func NewGroup() *Group {
	return &Group{Version: 2, ParallaxX: 100, ParallaxY: 100}
}

// Clipped reports whether the clip rectangle is enabled.
func (g *Group) Clipped() bool {
	return g.UseClipping != 0
}

// DefaultBackground turns the group into a static background.
func (g *Group) DefaultBackground() {
	g.ParallaxX = 0
	g.ParallaxY = 0
}

// AddLayer appends a layer to the group.
func (g *Group) AddLayer(l *Layer) {
	g.Layers = append(g.Layers, l)
}

// Layer carries the fields every layer has. Exactly one of Tiles and Quads is
// set for tile and quad layers; other layer types keep their payload words
// in Source.Trailing.
type Layer struct {
	Version int32
	Type    LayerType
	Flags   int32
	Tiles   *TileLayer
	Quads   *QuadLayer
	Source
}

// Name returns the variant's name, if any.
func (l *Layer) Name() string {
	switch {
	case l.Tiles != nil:
		return l.Tiles.Name
	case l.Quads != nil:
		return l.Quads.Name
	}
	return ""
}

func (l *Layer) String() string {
	switch {
	case l.Tiles != nil:
		return fmt.Sprintf("%s layer (%dx%d)", l.Tiles.Kind, l.Tiles.Width, l.Tiles.Height)
	case l.Quads != nil:
		return fmt.Sprintf("quad layer (%d)", len(l.Quads.Quads))
	}
	return l.Type.String() + " layer"
}

// TileLayer is a grid of tiles with optional gameplay overlays.
type TileLayer struct {
	Version        int32
	Width          int32
	Height         int32
	Game           int32 // Raw game flag, see Kind
	Kind           LayerKind
	Color          Color
	ColorEnv       int32
	ColorEnvOffset int32
	Image          int32
	Data           int32 // Pool index of the tile grid
	Name           string
	TeleData       int32 // Pool index of the tele overlay, -1 when absent
	SpeedupData    int32 // Pool index of the speedup overlay, -1 when absent
	Tiles          []Tile
	Tele           []TeleTile    // KindTele only
	Speedup        []SpeedupTile // KindSpeedup only
}

// NewTileLayer returns a 50x50 tile layer with a white color, no envelope
// and no image.
func NewTileLayer() *Layer {
	return &Layer{
		Type: LayerTiles,
		Tiles: &TileLayer{
			Version:     2,
			Width:       50,
			Height:      50,
			Kind:        KindNormal,
			Color:       Color{R: 255, G: 255, B: 255, A: 255},
			ColorEnv:    -1,
			Image:       -1,
			TeleData:    -1,
			SpeedupData: -1,
			Tiles:       make([]Tile, 50*50),
		},
	}
}

// At returns the tile at column x, row y.
func (t *TileLayer) At(x, y int) *Tile {
	return &t.Tiles[y*int(t.Width)+x]
}

// QuadLayer is an ordered list of free-form textured quads.
type QuadLayer struct {
	Version  int32
	NumQuads int32
	Data     int32 // Pool index of the quad records
	Image    int32
	Name     string // version >= 2 only
	Quads    []Quad
}

// NewQuadLayer returns an empty quad layer without an image.
func NewQuadLayer() *Layer {
	return &Layer{
		Type:  LayerQuads,
		Quads: &QuadLayer{Version: 2, Data: -1, Image: -1},
	}
}

// Color is an RGBA color as stored in item words
type Color struct {
	R, G, B, A int32
}

// Point is a fixed-point coordinate pair
type Point struct {
	X, Y int32
}

// Quad has four corners and a pivot, per-corner colors and texture
// coordinates, and optional position and color envelopes.
type Quad struct {
	Points         [5]Point // Corners, then the center
	Colors         [4]Color
	TexCoords      [4]Point
	PosEnv         int32
	PosEnvOffset   int32
	ColorEnv       int32
	ColorEnvOffset int32
}

// TeleTile is a cell of a tele overlay.
type TeleTile struct {
	Number uint8
	Type   uint8
}

// SpeedupTile is a cell of a speedup overlay. Angle is kept in the
// container's fixed-point convention.
type SpeedupTile struct {
	Force uint8
	Angle int16
}

// RawItem is an item of a type this package does not decode.
type RawItem struct {
	Type int
	ID   int
	Data []int32
}

// Failure records an item that could not be decoded.
type Failure struct {
	Index int // Position in the container's item list
	Type  ItemType
	ID    int
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("item %d (%s #%d): %v", f.Index, f.Type, f.ID, f.Err)
}

// ResolveImage returns the image referenced by idx, or nil for -1 and
// indexes outside m.Images.
func ResolveImage(m *Map, idx int32) *Image {
	if idx < 0 || int(idx) >= len(m.Images) {
		return nil
	}
	return m.Images[idx]
}

// ResolveEnvelope returns the envelope referenced by idx, or nil.
func ResolveEnvelope(m *Map, idx int32) *Envelope {
	if idx < 0 || int(idx) >= len(m.Envelopes) {
		return nil
	}
	return m.Envelopes[idx]
}
