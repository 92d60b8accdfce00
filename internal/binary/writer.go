package binary

import (
	"github.com/dyuri/twmap/internal/model"
)

// ItemData is an item payload as the container persists it: the payload
// size in bytes and the positional words.
//
// Encoders cover the structural fields of images, envelopes, groups and
// layers. An entity decoded and left unmodified encodes to exactly the words
// it was decoded from. Tile and quad grids are not re-encoded here; callers
// rewriting a map keep the original data blobs.
type ItemData struct {
	Size int32
	Data []int32
}

// Bytes returns the payload in container byte order.
func (d ItemData) Bytes() []byte {
	return PutWords(d.Data)
}

// finish trims or extends layout to the length the entity was decoded with.
// Entities built in memory keep the full layout.
func finish(layout []int32, src model.Source) ItemData {
	words := layout
	switch {
	case src.Words == 0:
	case src.Words <= len(layout):
		words = layout[:src.Words]
	default:
		words = append(layout, src.Trailing...)
		if len(words) > src.Words {
			words = words[:src.Words]
		}
	}
	return ItemData{Size: int32(len(words) * 4), Data: words}
}

func boolWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// EncodeImage returns the item words of img.
func EncodeImage(img *model.Image) ItemData {
	layout := []int32{
		img.Version,
		img.Width,
		img.Height,
		boolWord(img.External),
		img.NameData,
		img.ImageData,
	}
	return finish(layout, img.Source)
}

// EncodeEnvelope returns the item words of env, name included.
func EncodeEnvelope(env *model.Envelope) ItemData {
	layout := make([]int32, 0, envelopeWordsV2)
	layout = append(layout, env.Version, env.Channels, env.StartPoint, env.NumPoints)
	layout = append(layout, encodeNameWords(env.Name, NameWords)...)
	if env.Version >= 2 {
		layout = append(layout, boolWord(env.Synchronized))
	}
	return finish(layout, env.Source)
}

// EncodeGroup returns the item words of g. The layer range is written as
// stored; it is not recomputed from g.Layers.
func EncodeGroup(g *model.Group) ItemData {
	layout := make([]int32, 0, groupWordsV3)
	layout = append(layout,
		g.Version,
		g.OffsetX, g.OffsetY,
		g.ParallaxX, g.ParallaxY,
		g.StartLayer, g.NumLayers,
		g.UseClipping,
		g.ClipX, g.ClipY, g.ClipW, g.ClipH,
	)
	if g.Version >= 3 {
		layout = append(layout, encodeNameWords(g.Name, shortNameWords)...)
	}
	return finish(layout, g.Source)
}

// EncodeLayer returns the item words of l. Layers of types other than tiles
// and quads are written back from their preserved payload.
func EncodeLayer(l *model.Layer) ItemData {
	layout := []int32{l.Version, int32(l.Type), l.Flags}
	switch {
	case l.Tiles != nil:
		layout = appendTileLayer(layout, l.Tiles, l.Source.Words == 0)
	case l.Quads != nil:
		layout = appendQuadLayer(layout, l.Quads)
	}
	return finish(layout, l.Source)
}

func appendTileLayer(layout []int32, t *model.TileLayer, fresh bool) []int32 {
	layout = append(layout,
		t.Version,
		t.Width, t.Height,
		t.Game,
		t.Color.R, t.Color.G, t.Color.B, t.Color.A,
		t.ColorEnv, t.ColorEnvOffset,
		t.Image,
		t.Data,
	)
	if t.Version >= 3 {
		layout = append(layout, encodeNameWords(t.Name, shortNameWords)...)
	}
	// layers built in memory only carry overlay references when they use them
	if fresh && t.Kind != model.KindTele && t.Kind != model.KindSpeedup {
		return layout
	}
	return append(layout, t.TeleData, t.SpeedupData)
}

func appendQuadLayer(layout []int32, q *model.QuadLayer) []int32 {
	layout = append(layout, q.Version, q.NumQuads, q.Data, q.Image)
	if q.Version >= 2 {
		layout = append(layout, encodeNameWords(q.Name, shortNameWords)...)
	}
	return layout
}
