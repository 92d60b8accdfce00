package twmap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyuri/twmap/internal/binary"
	"github.com/dyuri/twmap/internal/datafile"
	"github.com/dyuri/twmap/internal/model"
)

func words(w ...int32) []byte {
	return binary.PutWords(w)
}

// sampleContainer builds a small map: one embedded and one external image,
// a game layer, a tele layer and a quad layer in one group.
func sampleContainer(t *testing.T) []byte {
	t.Helper()
	b := datafile.NewBuilder()

	grassName := b.AddData([]byte("grass\x00"))
	grassPixels := b.AddData(bytes.Repeat([]byte{10, 20, 30, 255}, 4))
	desertName := b.AddData([]byte("desert\x00"))
	gameTiles := b.AddData(binary.EncodeTiles([]model.Tile{{Index: 1}, {}, {}, {Index: 2, Flags: model.TileFlagVFlip}}))
	teleTiles := b.AddData(make([]byte, 4*binary.TileSize))
	tele := b.AddData([]byte{1, 26, 0, 0, 0, 0, 2, 27})
	quads := b.AddData(binary.EncodeQuads([]model.Quad{{PosEnv: -1, ColorEnv: -1}}))
	author := b.AddData([]byte("me\x00"))

	name := binary.EncodeName("")

	b.AddItem(int(model.ItemVersion), 0, words(1))
	b.AddItem(int(model.ItemInfo), 0, words(1, author, -1, -1, -1, -1))
	b.AddItem(int(model.ItemImage), 0, words(1, 2, 2, 0, grassName, grassPixels))
	b.AddItem(int(model.ItemImage), 1, words(1, 256, 256, 1, desertName, -1))
	b.AddItem(int(model.ItemEnvelope), 0, words(append([]int32{1, 3, 0, 1}, name[:]...)...))
	b.AddItem(int(model.ItemEnvpoints), 0, words(0, 1, 0, 0, 0, 0))
	b.AddItem(int(model.ItemGroup), 0, words(2, 0, 0, 100, 100, 0, 3, 0, 0, 0, 0, 0))
	b.AddItem(int(model.ItemLayer), 0, words(0, 2, 0, 2, 2, 2, 1, 255, 255, 255, 255, -1, 0, -1, gameTiles))
	b.AddItem(int(model.ItemLayer), 1, words(0, 2, 0, 2, 2, 2, 2, 255, 255, 255, 255, -1, 0, -1, teleTiles, tele, -1))
	b.AddItem(int(model.ItemLayer), 2, words(0, 3, 0, 1, 1, quads, 0))

	buf := &bytes.Buffer{}
	if _, err := b.WriteTo(buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := sampleContainer(t)
	m, err := Decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(m.Failures) != 0 {
		t.Fatalf("Failures = %v", m.Failures)
	}
	if m.Info == nil || *m.Info.Author != "me" {
		t.Errorf("Info = %+v", m.Info)
	}
	if len(m.Images) != 2 || m.Images[0].Name != "grass" || !m.Images[1].External {
		t.Fatalf("Images = %+v", m.Images)
	}
	if len(m.Groups) != 1 || len(m.Groups[0].Layers) != 3 {
		t.Fatalf("Groups = %+v", m.Groups)
	}

	layers := m.Groups[0].Layers
	game := layers[0].Tiles
	if game.Kind != model.KindGame || game.At(1, 1).Index != 2 || !game.At(1, 1).VFlip() {
		t.Errorf("game layer = %+v", game)
	}
	if tl := layers[1].Tiles; tl.Kind != model.KindTele || tl.Tele[3] != (TeleTile{Number: 2, Type: 27}) {
		t.Errorf("tele layer = %+v", tl)
	}
	if q := layers[2].Quads; len(q.Quads) != 1 || imageName(m, q.Image) != "grass" {
		t.Errorf("quad layer = %+v", q)
	}
}

func imageName(m *Map, idx int32) string {
	if im := model.ResolveImage(m, idx); im != nil {
		return im.Name
	}
	return ""
}

func TestDecodeRoundTrip(t *testing.T) {
	data := sampleContainer(t)
	df, err := OpenContainer(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenContainer failed: %v", err)
	}
	m, err := NewItemReader(df, NewOptions()).Decode(Items(df))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	for i, it := range df.Find(int(model.ItemLayer)) {
		got := EncodeLayer(m.Layers[i]).Bytes()
		if !bytes.Equal(got, it.Data) {
			t.Errorf("layer %d re-encoded as %v, want %v", i, got, it.Data)
		}
	}
	for i, it := range df.Find(int(model.ItemImage)) {
		if got := EncodeImage(m.Images[i]).Bytes(); !bytes.Equal(got, it.Data) {
			t.Errorf("image %d re-encoded as %v, want %v", i, got, it.Data)
		}
	}
	groups := df.Find(int(model.ItemGroup))
	if got := EncodeGroup(m.Groups[0]).Bytes(); !bytes.Equal(got, groups[0].Data) {
		t.Errorf("group re-encoded as %v", got)
	}
	envs := df.Find(int(model.ItemEnvelope))
	if got := EncodeEnvelope(m.Envelopes[0]).Bytes(); !bytes.Equal(got, envs[0].Data) {
		t.Errorf("envelope re-encoded as %v", got)
	}
}

func TestDecodeMapres(t *testing.T) {
	data := sampleContainer(t)
	dir := t.TempDir()
	m, err := Decode(bytes.NewReader(data), int64(len(data)), WithMapres(dir))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(m.Advisories) != 1 || !strings.Contains(m.Advisories[0], "desert.png") {
		t.Errorf("Advisories = %q", m.Advisories)
	}

	written, err := ExportImages(m, dir)
	if err != nil {
		t.Fatalf("ExportImages failed: %v", err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "grass.png" {
		t.Errorf("written = %v", written)
	}
}

func TestDecodeStrict(t *testing.T) {
	b := datafile.NewBuilder()
	b.AddItem(int(model.ItemImage), 0, words(1, 2, 2, 0, -1, 9))
	buf := &bytes.Buffer{}
	if _, err := b.WriteTo(buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	data := buf.Bytes()

	m, err := Decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(m.Failures) != 1 || len(m.Images) != 1 || m.Images[0] != nil {
		t.Errorf("Failures = %v, Images = %v", m.Failures, m.Images)
	}

	_, err = Decode(bytes.NewReader(data), int64(len(data)), WithStrict(true))
	var re *RangeError
	if !errors.As(err, &re) || re.Index != 9 {
		t.Errorf("strict error = %v, want *RangeError", err)
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.map"))
	var e *Error
	if !errors.As(err, &e) || e.Code != "open" || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}

	data := []byte("not a map at all, just some text padding")
	_, err = Decode(bytes.NewReader(data), int64(len(data)))
	if !errors.As(err, &e) || e.Code != ErrInvalidHeader.Code {
		t.Errorf("bad header error = %v", err)
	}
}

func TestWriteText(t *testing.T) {
	data := sampleContainer(t)
	m, err := Decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	buf := &bytes.Buffer{}
	if err := WriteText(buf, m, true); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	for _, want := range []string{"Name=grass", "Kind=tele", "TeleTiles=4", "Tile=1,1,2,vflip"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output lacks %q", want)
		}
	}
}

func TestDecodeGridCeiling(t *testing.T) {
	b := datafile.NewBuilder()
	// 3x3 cells need 36 bytes of tile records, over a 16 byte blob limit
	b.AddItem(int(model.ItemLayer), 0, words(0, 2, 0, 2, 3, 3, 0, 255, 255, 255, 255, -1, 0, -1, -1))
	b.AddItem(int(model.ItemLayer), 1, words(0, 2, 0, 2, 2, 2, 0, 255, 255, 255, 255, -1, 0, -1, -1))
	buf := &bytes.Buffer{}
	if _, err := b.WriteTo(buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	data := buf.Bytes()

	m, err := Decode(bytes.NewReader(data), int64(len(data)), WithMaxBlobSize(16))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(m.Failures) != 1 || m.Failures[0].ID != 0 || !errors.Is(m.Failures[0].Err, ErrFormat) {
		t.Errorf("Failures = %v", m.Failures)
	}
	if len(m.Layers) != 2 || m.Layers[1] == nil || len(m.Layers[1].Tiles.Tiles) != 4 {
		t.Errorf("Layers = %v", m.Layers)
	}
}
