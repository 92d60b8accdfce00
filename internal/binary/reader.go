package binary

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/dyuri/twmap/internal/model"
)

// Pool is the container's raw data pool. Fetch returns the decompressed blob
// stored at index; Size is the number of blobs.
type Pool interface {
	Fetch(index int32) ([]byte, error)
	Size() int
}

// Item is one entry of the container's item table
type Item struct {
	Type int // Raw type tag
	ID   int
	Data []byte
}

// Entity is the decoded form of one item. Type selects the field that is
// set; Raw is set for type tags this package does not know.
type Entity struct {
	Type      model.ItemType
	Version   int32
	Info      *model.Info
	Image     *model.Image
	Envelope  *model.Envelope
	Envpoints []model.Envpoint
	Group     *model.Group
	Layer     *model.Layer
	Raw       *model.RawItem
}

// Item layouts in words. Older versions carry a prefix of these.
const (
	imageWords       = 6
	envelopeWords    = 12 // version, channels, start, count, name[8]
	envelopeWordsV2  = 13 // + synchronized
	envpointWords    = 6  // time, curve, values[4]
	groupWords       = 12
	groupWordsV3     = 15 // + name[3]
	layerHeaderWords = 3  // version, type, flags
	tileLayerWords   = layerHeaderWords + 12
	tileLayerWordsV3 = tileLayerWords + shortNameWords
	quadLayerWords   = layerHeaderWords + 4
	quadLayerWordsV2 = quadLayerWords + shortNameWords
)

// Tile maps from this version on store run-length packed tiles.
const tileSkipVersion = 4

// DefaultMaxCells caps width*height of a tile layer: a 64 MiB grid of tile
// records.
const DefaultMaxCells = 64 << 20 / TileSize

// Reader decodes items against a raw data pool
type Reader struct {
	pool      Pool
	envpoints int               // Size of the envpoint pool seen so far
	maxCells  int64             // Largest tile layer grid accepted
	strict    bool              // Abort Decode on the first failing item
	decoder   *encoding.Decoder // Fallback for text that is not UTF-8
	log       logrus.FieldLogger
}

// NewReader creates a reader over pool
func NewReader(pool Pool) *Reader {
	return &Reader{
		pool:     pool,
		maxCells: DefaultMaxCells,
		decoder:  charmap.Windows1252.NewDecoder(),
		log:      logger,
	}
}

// SetStrict makes Decode fail on the first item that cannot be decoded
// instead of recording it and moving on.
func (r *Reader) SetStrict(strict bool) {
	r.strict = strict
}

// SetMaxCells sets the largest width*height a tile layer may declare. Larger
// layers fail with a *FormatError before their grid is allocated.
func (r *Reader) SetMaxCells(n int64) {
	r.maxCells = n
}

// SetLogger overrides the package logger for this reader.
func (r *Reader) SetLogger(l logrus.FieldLogger) {
	r.log = l
}

// SetEnvpointCount sets the size of the envpoint pool envelopes are checked
// against. Decode maintains it itself.
func (r *Reader) SetEnvpointCount(n int) {
	r.envpoints = n
}

// Decode decodes every item into a map. Items that fail are recorded in
// Map.Failures and leave a nil entry in their list so that indexes keep
// matching item ids.
func (r *Reader) Decode(items []Item) (*model.Map, error) {
	m := &model.Map{}
	r.envpoints = 0

	// envelopes are checked against the envpoint pool, so it goes first
	order := make([]int, 0, len(items))
	for i, it := range items {
		if model.ItemType(it.Type) == model.ItemEnvpoints {
			order = append(order, i)
		}
	}
	for i, it := range items {
		if model.ItemType(it.Type) != model.ItemEnvpoints {
			order = append(order, i)
		}
	}

	for _, i := range order {
		item := items[i]
		e, err := r.DecodeItem(item)
		if err != nil {
			if r.strict {
				return nil, err
			}
			t := model.ItemType(item.Type)
			r.log.WithFields(logrus.Fields{
				"item": i,
				"type": t.String(),
				"id":   item.ID,
			}).WithError(err).Warn("skipping item")
			m.Failures = append(m.Failures, model.Failure{Index: i, Type: t, ID: item.ID, Err: err})
			e = Entity{Type: t}
		}
		r.add(m, e)
	}

	if err := r.assignLayers(m); err != nil {
		return nil, err
	}
	return m, nil
}

// add stores e in m. A zero entity of a known type stands for a failed item.
func (r *Reader) add(m *model.Map, e Entity) {
	switch e.Type {
	case model.ItemVersion:
		m.Version = e.Version
	case model.ItemInfo:
		if e.Info != nil {
			m.Info = e.Info
		}
	case model.ItemImage:
		m.Images = append(m.Images, e.Image)
	case model.ItemEnvelope:
		m.Envelopes = append(m.Envelopes, e.Envelope)
	case model.ItemEnvpoints:
		m.Envpoints = append(m.Envpoints, e.Envpoints...)
		r.envpoints = len(m.Envpoints)
	case model.ItemGroup:
		m.Groups = append(m.Groups, e.Group)
	case model.ItemLayer:
		m.Layers = append(m.Layers, e.Layer)
	default:
		if e.Raw != nil {
			m.Unrecognized = append(m.Unrecognized, *e.Raw)
		}
	}
}

// assignLayers fills each group from its stored layer range. After loading,
// Group.Layers is authoritative and the range fields are only kept for
// re-encoding.
func (r *Reader) assignLayers(m *model.Map) error {
	for _, g := range m.Groups {
		if g == nil {
			continue
		}
		start, num := int(g.StartLayer), int(g.NumLayers)
		if start < 0 || num < 0 || start+num > len(m.Layers) {
			err := errors.Wrapf(&model.RangeError{What: "group layers", Index: start + num, Size: len(m.Layers)},
				"group %d", g.ID)
			if r.strict {
				return err
			}
			r.log.WithField("id", g.ID).WithError(err).Warn("group layer range out of bounds")
			m.Failures = append(m.Failures, model.Failure{Index: -1, Type: model.ItemGroup, ID: g.ID, Err: err})
			continue
		}
		for _, l := range m.Layers[start : start+num] {
			if l != nil {
				g.AddLayer(l)
			}
		}
	}
	return nil
}

// DecodeItem selects a decoder from the item's type tag and, for layers, its
// sub-type. Unknown type tags come back as Raw entities.
func (r *Reader) DecodeItem(item Item) (Entity, error) {
	words, err := Words(item.Data)
	if err != nil {
		return Entity{}, errors.Wrapf(err, "item %d of type %d", item.ID, item.Type)
	}

	t := model.ItemType(item.Type)
	if !t.Known() {
		return Entity{Type: t, Raw: &model.RawItem{Type: item.Type, ID: item.ID, Data: words}}, nil
	}

	f := fields(words)
	e := Entity{Type: t}
	switch t {
	case model.ItemVersion:
		e.Version = f.at(0, 0)
	case model.ItemInfo:
		e.Info, err = r.decodeInfo(f)
	case model.ItemImage:
		e.Image, err = r.decodeImage(item.ID, f)
	case model.ItemEnvelope:
		e.Envelope, err = r.decodeEnvelope(item.ID, f)
	case model.ItemEnvpoints:
		e.Envpoints, err = decodeEnvpoints(f)
	case model.ItemGroup:
		e.Group = decodeGroup(item.ID, f)
	case model.ItemLayer:
		e.Layer, err = r.decodeLayer(item.ID, f)
	}
	if err != nil {
		return Entity{}, errors.Wrapf(err, "decode %s %d", t, item.ID)
	}

	r.log.WithFields(logrus.Fields{"type": t.String(), "id": item.ID, "words": len(words)}).Debug("decoded item")
	return e, nil
}

func source(id int, f fields, known int) model.Source {
	return model.Source{ID: id, Words: len(f), Trailing: f.trailing(known)}
}

// fetch reads a blob that must exist. Callers check for the absent sentinel
// first.
func (r *Reader) fetch(ref int32, what string) ([]byte, error) {
	if !inRange(int(ref), r.pool.Size()) {
		return nil, &model.RangeError{What: what, Index: int(ref), Size: r.pool.Size()}
	}
	data, err := r.pool.Fetch(ref)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s %d", what, ref)
	}
	return data, nil
}

// fetchOverlay reads a tele or speedup overlay. References outside the pool
// are treated as absent, which hand-edited maps rely on.
func (r *Reader) fetchOverlay(ref int32, what string) ([]byte, bool, error) {
	if ref <= absent {
		return nil, false, nil
	}
	if !inRange(int(ref), r.pool.Size()) {
		r.log.WithFields(logrus.Fields{"ref": ref, "pool": r.pool.Size()}).Debugf("ignoring %s reference", what)
		return nil, false, nil
	}
	data, err := r.pool.Fetch(ref)
	if err != nil {
		return nil, false, errors.Wrapf(err, "fetch %s %d", what, ref)
	}
	return data, true, nil
}

// text converts a stored string. Maps are written as UTF-8; older ones may
// hold Windows-1252 text.
func (r *Reader) text(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := r.decoder.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// cstring cuts b at its first NUL.
func cstring(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// optionalText fetches a NUL-terminated string, nil when ref is absent.
func (r *Reader) optionalText(ref int32, what string) (*string, error) {
	if ref <= absent {
		return nil, nil
	}
	data, err := r.fetch(ref, what)
	if err != nil {
		return nil, err
	}
	s := r.text(cstring(data))
	return &s, nil
}

var infoTextFields = [...]string{"author", "map version", "credits", "license"}

func (r *Reader) decodeInfo(f fields) (*model.Info, error) {
	info := &model.Info{Version: f.at(0, 1)}
	targets := [...]**string{&info.Author, &info.MapVersion, &info.Credits, &info.License}
	for i, dst := range targets {
		s, err := r.optionalText(f.at(i+1, absent), infoTextFields[i])
		if err != nil {
			return nil, err
		}
		*dst = s
	}

	if ref := f.at(5, absent); ref > absent {
		data, err := r.fetch(ref, "settings")
		if err != nil {
			return nil, err
		}
		info.Settings = r.splitSettings(data)
	}
	return info, nil
}

// splitSettings splits a NUL-delimited command list. The final NUL ends the
// last command and does not start a new one.
func (r *Reader) splitSettings(data []byte) []string {
	data = bytes.TrimSuffix(data, []byte{0})
	if len(data) == 0 {
		return nil
	}
	parts := strings.Split(string(data), "\x00")
	for i, p := range parts {
		parts[i] = r.text([]byte(p))
	}
	return parts
}

func (r *Reader) decodeImage(id int, f fields) (*model.Image, error) {
	img := &model.Image{
		Version:   f.at(0, 1),
		Width:     f.at(1, 0),
		Height:    f.at(2, 0),
		External:  f.at(3, 0) != 0,
		NameData:  f.at(4, absent),
		ImageData: f.at(5, absent),
		Source:    source(id, f, imageWords),
	}
	if img.Width < 0 || img.Height < 0 {
		return nil, &model.FormatError{What: "image size " + img.Resolution()}
	}

	if img.NameData > absent {
		data, err := r.fetch(img.NameData, "image name")
		if err != nil {
			return nil, err
		}
		img.Name = r.text(cstring(data))
	}

	if img.External {
		return img, nil
	}
	if img.ImageData <= absent {
		return nil, &model.FormatError{What: "embedded image " + img.Name + " has no data"}
	}
	data, err := r.fetch(img.ImageData, "image data")
	if err != nil {
		return nil, err
	}
	if want := int(img.Width) * int(img.Height) * 4; len(data) != want {
		return nil, &model.FormatError{What: "image data for " + img.Resolution() + " RGBA", Len: len(data)}
	}
	img.Data = data
	return img, nil
}

func (r *Reader) decodeEnvelope(id int, f fields) (*model.Envelope, error) {
	env := &model.Envelope{
		Version:    f.at(0, 1),
		Channels:   f.at(1, 0),
		StartPoint: f.at(2, 0),
		NumPoints:  f.at(3, 0),
	}
	if name := f.span(4, envelopeWords); name != nil {
		env.Name = decodeNameWords(name)
	}
	known := envelopeWords
	if env.Version >= 2 {
		known = envelopeWordsV2
		env.Synchronized = f.at(envelopeWords, 0) != 0
	}
	env.Source = source(id, f, known)

	start, num := int(env.StartPoint), int(env.NumPoints)
	if start < 0 || num < 0 || start+num > r.envpoints {
		return nil, &model.RangeError{What: "envelope points", Index: start + num, Size: r.envpoints}
	}
	return env, nil
}

func decodeEnvpoints(f fields) ([]model.Envpoint, error) {
	if len(f)%envpointWords != 0 {
		return nil, &model.FormatError{What: "envpoints", Len: len(f) * 4, Stride: envpointWords * 4}
	}
	points := make([]model.Envpoint, len(f)/envpointWords)
	for i := range points {
		w := f[i*envpointWords:]
		points[i] = model.Envpoint{
			Time:   w[0],
			Curve:  model.CurveType(w[1]),
			Values: [4]int32{w[2], w[3], w[4], w[5]},
		}
	}
	return points, nil
}

func decodeGroup(id int, f fields) *model.Group {
	g := &model.Group{
		Version:     f.at(0, 1),
		OffsetX:     f.at(1, 0),
		OffsetY:     f.at(2, 0),
		ParallaxX:   f.at(3, 100),
		ParallaxY:   f.at(4, 100),
		StartLayer:  f.at(5, 0),
		NumLayers:   f.at(6, 0),
		UseClipping: f.at(7, 0),
		ClipX:       f.at(8, 0),
		ClipY:       f.at(9, 0),
		ClipW:       f.at(10, 0),
		ClipH:       f.at(11, 0),
	}
	known := groupWords
	if g.Version >= 3 {
		known = groupWordsV3
		if name := f.span(groupWords, groupWordsV3); name != nil {
			g.Name = decodeNameWords(name)
		}
	}
	g.Source = source(id, f, known)
	return g
}

func (r *Reader) decodeLayer(id int, f fields) (*model.Layer, error) {
	l := &model.Layer{
		Version: f.at(0, 0),
		Type:    model.LayerType(f.at(1, 0)),
		Flags:   f.at(2, 0),
	}
	known := layerHeaderWords
	var err error
	switch l.Type {
	case model.LayerTiles:
		l.Tiles, known, err = r.decodeTileLayer(f)
	case model.LayerQuads:
		l.Quads, known, err = r.decodeQuadLayer(f)
	default:
		r.log.WithFields(logrus.Fields{"id": id, "layer": l.Type.String()}).Debug("keeping layer payload opaque")
	}
	if err != nil {
		return nil, err
	}
	l.Source = source(id, f, known)
	return l, nil
}

// overlayWords returns the positions of the tele and speedup references. They
// follow the name from version 3 on and the data reference before that.
func overlayWords(version int32) (tele, speedup int) {
	if version >= 3 {
		return tileLayerWordsV3, tileLayerWordsV3 + 1
	}
	return tileLayerWords, tileLayerWords + 1
}

func (r *Reader) decodeTileLayer(f fields) (*model.TileLayer, int, error) {
	t := &model.TileLayer{
		Version: f.at(3, 0),
		Width:   f.at(4, 0),
		Height:  f.at(5, 0),
		Game:    f.at(6, 0),
		Color: model.Color{
			R: f.at(7, 0),
			G: f.at(8, 0),
			B: f.at(9, 0),
			A: f.at(10, 0),
		},
		ColorEnv:       f.at(11, absent),
		ColorEnvOffset: f.at(12, 0),
		Image:          f.at(13, absent),
		Data:           f.at(14, absent),
	}
	t.Kind = model.LayerKindOf(t.Game)
	if t.Width < 0 || t.Height < 0 {
		return nil, 0, &model.FormatError{What: "negative tile layer size"}
	}
	if t.Version >= 3 {
		if name := f.span(tileLayerWords, tileLayerWordsV3); name != nil {
			t.Name = decodeNameWords(name)
		}
	}
	teleAt, speedupAt := overlayWords(t.Version)
	t.TeleData = f.at(teleAt, absent)
	t.SpeedupData = f.at(speedupAt, absent)

	cells64 := int64(t.Width) * int64(t.Height)
	if cells64 > r.maxCells {
		return nil, 0, &model.FormatError{What: fmt.Sprintf("tile layer %dx%d exceeds %d cells", t.Width, t.Height, r.maxCells)}
	}
	cells := int(cells64)
	if err := r.loadTiles(t, cells); err != nil {
		return nil, 0, err
	}

	switch t.Kind {
	case model.KindTele:
		data, ok, err := r.fetchOverlay(t.TeleData, "tele data")
		if err != nil {
			return nil, 0, err
		}
		if ok {
			if t.Tele, err = DecodeTeleTiles(data); err != nil {
				return nil, 0, err
			}
			if len(t.Tele) != cells {
				return nil, 0, &model.FormatError{What: "tele grid", Len: len(data)}
			}
		}
	case model.KindSpeedup:
		data, ok, err := r.fetchOverlay(t.SpeedupData, "speedup data")
		if err != nil {
			return nil, 0, err
		}
		if ok {
			if t.Speedup, err = DecodeSpeedupTiles(data); err != nil {
				return nil, 0, err
			}
			if len(t.Speedup) != cells {
				return nil, 0, &model.FormatError{What: "speedup grid", Len: len(data)}
			}
		}
	}

	return t, speedupAt + 1, nil
}

func (r *Reader) loadTiles(t *model.TileLayer, cells int) error {
	if t.Data <= absent {
		t.Tiles = make([]model.Tile, cells)
		return nil
	}
	data, err := r.fetch(t.Data, "tile data")
	if err != nil {
		return err
	}
	tiles, err := DecodeTiles(data)
	if err != nil {
		return err
	}
	if t.Version >= tileSkipVersion {
		if tiles, err = ExpandTiles(tiles, cells); err != nil {
			return err
		}
	}
	if len(tiles) != cells {
		return &model.FormatError{What: "tile grid", Len: len(data)}
	}
	t.Tiles = tiles
	return nil
}

func (r *Reader) decodeQuadLayer(f fields) (*model.QuadLayer, int, error) {
	q := &model.QuadLayer{
		Version:  f.at(3, 0),
		NumQuads: f.at(4, 0),
		Data:     f.at(5, absent),
		Image:    f.at(6, absent),
	}
	known := quadLayerWords
	if q.Version >= 2 {
		known = quadLayerWordsV2
		if name := f.span(quadLayerWords, quadLayerWordsV2); name != nil {
			q.Name = decodeNameWords(name)
		}
	}

	if q.Data > absent {
		data, err := r.fetch(q.Data, "quad data")
		if err != nil {
			return nil, 0, err
		}
		if q.Quads, err = DecodeQuads(data); err != nil {
			return nil, 0, err
		}
	}
	if int(q.NumQuads) != len(q.Quads) {
		r.log.WithFields(logrus.Fields{"declared": q.NumQuads, "stored": len(q.Quads)}).Warn("quad count mismatch")
	}
	return q, known, nil
}
