package text

import (
	"fmt"
	"io"

	"github.com/dyuri/twmap/internal/model"
)

// Writer writes a human-readable listing of a decoded map
type Writer struct {
	w     io.Writer
	err   error
	tiles bool // Also list non-empty tiles
}

// NewWriter creates a text writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetTiles enables listing every non-empty tile of tile layers.
func (w *Writer) SetTiles(on bool) {
	w.tiles = on
}

func (w *Writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

// Write outputs the map in sections
func (w *Writer) Write(m *model.Map) error {
	w.printf("[map]\nVersion=%d\n[end]\n\n", m.Version)

	if m.Info != nil {
		w.writeInfo(m.Info)
	}
	for i, im := range m.Images {
		w.writeImage(i, im)
	}
	for i, env := range m.Envelopes {
		w.writeEnvelope(i, env, m.Envpoints)
	}
	for i, g := range m.Groups {
		w.writeGroup(i, g)
	}
	for _, raw := range m.Unrecognized {
		w.printf("[item]\nType=%d\nID=%d\nWords=%d\n[end]\n\n", raw.Type, raw.ID, len(raw.Data))
	}
	for _, f := range m.Failures {
		w.printf("# failed: %v\n", f)
	}
	for _, a := range m.Advisories {
		w.printf("# advisory: %s\n", a)
	}
	if w.err != nil {
		return fmt.Errorf("write map: %w", w.err)
	}
	return nil
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// writeInfo writes the [info] section
func (w *Writer) writeInfo(info *model.Info) {
	w.printf("[info]\n")
	w.printf("Author=%s\n", optional(info.Author))
	w.printf("MapVersion=%s\n", optional(info.MapVersion))
	w.printf("Credits=%s\n", optional(info.Credits))
	w.printf("License=%s\n", optional(info.License))
	for _, s := range info.Settings {
		w.printf("Setting=%s\n", s)
	}
	w.printf("[end]\n\n")
}

func (w *Writer) writeImage(i int, im *model.Image) {
	if im == nil {
		w.printf("[image]\nIndex=%d\nFailed=true\n[end]\n\n", i)
		return
	}
	w.printf("[image]\nIndex=%d\nName=%s\nSize=%s\nExternal=%t\n[end]\n\n", i, im.Name, im.Resolution(), im.External)
}

func (w *Writer) writeEnvelope(i int, env *model.Envelope, pool []model.Envpoint) {
	if env == nil {
		w.printf("[envelope]\nIndex=%d\nFailed=true\n[end]\n\n", i)
		return
	}
	w.printf("[envelope]\nIndex=%d\nName=%s\nChannels=%d\n", i, env.Name, env.Channels)
	if env.Synchronized {
		w.printf("Synchronized=true\n")
	}
	for _, p := range env.Points(pool) {
		w.printf("Point=%d,%s", p.Time, p.Curve)
		for _, v := range p.Values[:channels(env)] {
			w.printf(",%d", v)
		}
		w.printf("\n")
	}
	w.printf("[end]\n\n")
}

func channels(env *model.Envelope) int {
	if env.Channels < 0 || env.Channels > 4 {
		return 4
	}
	return int(env.Channels)
}

func (w *Writer) writeGroup(i int, g *model.Group) {
	if g == nil {
		w.printf("[group]\nIndex=%d\nFailed=true\n[end]\n\n", i)
		return
	}
	w.printf("[group]\nIndex=%d\n", i)
	if g.Name != "" {
		w.printf("Name=%s\n", g.Name)
	}
	w.printf("Offset=%d,%d\nParallax=%d,%d\n", g.OffsetX, g.OffsetY, g.ParallaxX, g.ParallaxY)
	if g.Clipped() {
		w.printf("Clip=%d,%d,%d,%d\n", g.ClipX, g.ClipY, g.ClipW, g.ClipH)
	}
	w.printf("[end]\n\n")

	for _, l := range g.Layers {
		w.writeLayer(l)
	}
}

func (w *Writer) writeLayer(l *model.Layer) {
	w.printf("[layer]\nType=%s\nFlags=%d\n", l.Type, l.Flags)
	if name := l.Name(); name != "" {
		w.printf("Name=%s\n", name)
	}
	switch {
	case l.Tiles != nil:
		w.writeTileLayer(l.Tiles)
	case l.Quads != nil:
		w.writeQuadLayer(l.Quads)
	default:
		w.printf("Words=%d\n", len(l.Trailing))
	}
	w.printf("[end]\n\n")
}

func (w *Writer) writeTileLayer(t *model.TileLayer) {
	w.printf("Kind=%s\nSize=%dx%d\n", t.Kind, t.Width, t.Height)
	w.printf("Color=#%02x%02x%02x%02x\n", t.Color.R&0xff, t.Color.G&0xff, t.Color.B&0xff, t.Color.A&0xff)
	if t.Image > -1 {
		w.printf("Image=%d\n", t.Image)
	}
	if t.ColorEnv > -1 {
		w.printf("ColorEnv=%d,%d\n", t.ColorEnv, t.ColorEnvOffset)
	}
	used := 0
	for _, tile := range t.Tiles {
		if tile.Index != 0 {
			used++
		}
	}
	w.printf("Tiles=%d/%d\n", used, len(t.Tiles))
	if len(t.Tele) > 0 {
		w.printf("TeleTiles=%d\n", len(t.Tele))
	}
	if len(t.Speedup) > 0 {
		w.printf("SpeedupTiles=%d\n", len(t.Speedup))
	}
	if !w.tiles || t.Width == 0 {
		return
	}
	for i := range t.Tiles {
		tile := &t.Tiles[i]
		if tile.Index == 0 {
			continue
		}
		x, y := i%int(t.Width), i/int(t.Width)
		w.printf("Tile=%d,%d,%d", x, y, tile.Index)
		if tile.HFlip() {
			w.printf(",hflip")
		}
		if tile.VFlip() {
			w.printf(",vflip")
		}
		if r := tile.Rotation(); r != 0 {
			w.printf(",rot%d", r)
		}
		w.printf("\n")
	}
}

func (w *Writer) writeQuadLayer(q *model.QuadLayer) {
	if q.Image > -1 {
		w.printf("Image=%d\n", q.Image)
	}
	w.printf("Quads=%d\n", len(q.Quads))
	for _, quad := range q.Quads {
		c := quad.Points[4]
		w.printf("Quad=%d,%d", c.X, c.Y)
		if quad.PosEnv > -1 {
			w.printf(",posenv:%d", quad.PosEnv)
		}
		if quad.ColorEnv > -1 {
			w.printf(",colorenv:%d", quad.ColorEnv)
		}
		w.printf("\n")
	}
}
