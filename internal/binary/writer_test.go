package binary

import (
	"slices"
	"testing"

	"github.com/dyuri/twmap/internal/model"
)

// roundTrip decodes words as an item of typ and returns the entity
func roundTrip(t *testing.T, r *Reader, typ model.ItemType, words []int32) Entity {
	t.Helper()
	e, err := r.DecodeItem(item(typ, 0, words...))
	if err != nil {
		t.Fatalf("DecodeItem(%s) failed: %v", typ, err)
	}
	return e
}

func checkWords(t *testing.T, got ItemData, want []int32) {
	t.Helper()
	if !slices.Equal(got.Data, want) {
		t.Errorf("encoded %v, want %v", got.Data, want)
	}
	if got.Size != int32(len(want)*4) {
		t.Errorf("Size = %d, want %d", got.Size, len(want)*4)
	}
	if len(got.Bytes()) != int(got.Size) {
		t.Errorf("Bytes() has %d bytes, want %d", len(got.Bytes()), got.Size)
	}
}

func TestEncodeImageRoundTrip(t *testing.T) {
	r := NewReader(memPool{[]byte("jungle\x00")})
	words := []int32{1, 1024, 1024, 1, 0, -1}
	e := roundTrip(t, r, model.ItemImage, words)
	checkWords(t, EncodeImage(e.Image), words)
}

func TestEncodeEnvelopeRoundTrip(t *testing.T) {
	r := NewReader(memPool{})
	r.SetEnvpointCount(8)
	name := EncodeName("Rotation")

	v1 := append([]int32{1, 1, 0, 4}, name[:]...)
	e := roundTrip(t, r, model.ItemEnvelope, v1)
	checkWords(t, EncodeEnvelope(e.Envelope), v1)

	v2 := append(append([]int32{2, 4, 4, 4}, name[:]...), 1)
	e = roundTrip(t, r, model.ItemEnvelope, v2)
	if !e.Envelope.Synchronized {
		t.Errorf("Synchronized = false, want true")
	}
	checkWords(t, EncodeEnvelope(e.Envelope), v2)

	// renaming only touches the name words
	e.Envelope.Name = "Pos"
	enc := EncodeEnvelope(e.Envelope)
	if DecodeName([NameWords]int32(enc.Data[4:12])) != "Pos" {
		t.Errorf("renamed envelope decodes as %q", DecodeName([NameWords]int32(enc.Data[4:12])))
	}
	if enc.Data[12] != 1 {
		t.Errorf("synchronized word = %d, want 1", enc.Data[12])
	}
}

func TestEncodeGroupRoundTrip(t *testing.T) {
	r := NewReader(memPool{})
	words := append([]int32{3, 10, -20, 50, 50, 0, 4, 1, 0, 0, 800, 600}, encodeNameWords("Back", shortNameWords)...)
	e := roundTrip(t, r, model.ItemGroup, words)
	checkWords(t, EncodeGroup(e.Group), words)

	// older versions stop where they stopped
	legacy := []int32{1, 0, 0, 100, 100, 0, 1}
	e = roundTrip(t, r, model.ItemGroup, legacy)
	checkWords(t, EncodeGroup(e.Group), legacy)
}

func TestEncodeQuadLayerRoundTrip(t *testing.T) {
	r := NewReader(memPool{make([]byte, QuadSize)})
	words := layerWords(model.LayerQuads, append([]int32{2, 1, 0, 3}, encodeNameWords("Sky", shortNameWords)...)...)
	e := roundTrip(t, r, model.ItemLayer, words)
	checkWords(t, EncodeLayer(e.Layer), words)
}

func TestEncodeTileLayerRoundTrip(t *testing.T) {
	r := NewReader(memPool{make([]byte, 4*TileSize), make([]byte, 4*SpeedupSize)})
	body := append([]int32{3, 2, 2, 4, 255, 128, 0, 200, 2, 100, 1, 0}, encodeNameWords("Speed", shortNameWords)...)
	words := layerWords(model.LayerTiles, append(body, -1, 1)...)
	e := roundTrip(t, r, model.ItemLayer, words)
	checkWords(t, EncodeLayer(e.Layer), words)
}

func TestEncodeTrailingWords(t *testing.T) {
	r := NewReader(memPool{})
	// a group from a newer writer with two extra words
	words := append([]int32{3, 0, 0, 100, 100, 0, 0, 0, 0, 0, 0, 0}, encodeNameWords("", shortNameWords)...)
	words = append(words, 77, 88)
	e := roundTrip(t, r, model.ItemGroup, words)
	if !slices.Equal(e.Group.Trailing, []int32{77, 88}) {
		t.Errorf("Trailing = %v, want [77 88]", e.Group.Trailing)
	}
	checkWords(t, EncodeGroup(e.Group), words)
}

func TestEncodeFreshLayers(t *testing.T) {
	l := model.NewTileLayer()
	enc := EncodeLayer(l)
	want := append([]int32{0, int32(model.LayerTiles), 0}, 2, 50, 50, 0, 255, 255, 255, 255, -1, 0, -1, 0)
	checkWords(t, enc, want)

	// overlay layers need their references even when built in memory
	l.Tiles.Game = 2
	l.Tiles.Kind = model.KindTele
	l.Tiles.TeleData = 5
	enc = EncodeLayer(l)
	if n := len(enc.Data); n != len(want)+2 || enc.Data[n-2] != 5 || enc.Data[n-1] != -1 {
		t.Errorf("tele layer encoded as %v", enc.Data)
	}

	q := EncodeLayer(model.NewQuadLayer())
	checkWords(t, q, append([]int32{0, int32(model.LayerQuads), 0, 2, 0, -1, -1}, encodeNameWords("", shortNameWords)...))

	g := EncodeGroup(model.NewGroup())
	checkWords(t, g, []int32{2, 0, 0, 100, 100, 0, 0, 0, 0, 0, 0, 0})
}
