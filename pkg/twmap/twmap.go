// Package twmap decodes tile-based game maps.
//
// This package can be used as a library to open a map, inspect its
// images, envelopes, groups and layers, and re-encode the structural
// fields of those entities.
//
// Example usage:
//
//	m, err := twmap.Open("dm1.map", twmap.WithMapres("data/mapres"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, g := range m.Groups {
//	    fmt.Println(g.Name, len(g.Layers))
//	}
package twmap

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dyuri/twmap/internal/binary"
	"github.com/dyuri/twmap/internal/datafile"
	"github.com/dyuri/twmap/internal/img"
	"github.com/dyuri/twmap/internal/model"
	"github.com/dyuri/twmap/internal/text"
)

// Entity types
type (
	Map         = model.Map
	Info        = model.Info
	Image       = model.Image
	Envelope    = model.Envelope
	Envpoint    = model.Envpoint
	Group       = model.Group
	Layer       = model.Layer
	TileLayer   = model.TileLayer
	QuadLayer   = model.QuadLayer
	Tile        = model.Tile
	TeleTile    = model.TeleTile
	SpeedupTile = model.SpeedupTile
	Quad        = model.Quad
	ItemData    = binary.ItemData
	FormatError = model.FormatError
	RangeError  = model.RangeError
	ValueError  = model.ValueError
)

// Sentinels for errors.Is
var (
	ErrFormat = model.ErrFormat
	ErrRange  = model.ErrRange
	ErrValue  = model.ErrValue
)

// Options configures Open and Decode
type Options struct {
	MaxBlobSize int64  // Decompressed size ceiling per blob
	CacheSize   int    // Decompressed blobs kept in memory
	Mapres      string // Directory of external images; empty skips the check
	Strict      bool   // Fail on the first undecodable item
	Logger      logrus.FieldLogger
}

// Option is a functional option for Open and Decode.
type Option func(*Options)

// WithMaxBlobSize caps the decompressed size of one blob.
func WithMaxBlobSize(n int64) Option {
	return func(o *Options) { o.MaxBlobSize = n }
}

// WithCacheSize sets the number of decompressed blobs kept in memory.
func WithCacheSize(n int) Option {
	return func(o *Options) { o.CacheSize = n }
}

// WithMapres enables the external image check against dir.
func WithMapres(dir string) Option {
	return func(o *Options) { o.Mapres = dir }
}

// WithStrict makes decoding fail on the first bad item.
func WithStrict(strict bool) Option {
	return func(o *Options) { o.Strict = strict }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	d := datafile.DefaultOptions()
	o := Options{MaxBlobSize: d.MaxBlobSize, CacheSize: d.CacheSize, Logger: d.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Open reads and decodes the map file at path.
func Open(path string, opts ...Option) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Code: "open", Message: "open map", Cause: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, &Error{Code: "open", Message: "stat map", Cause: err}
	}
	return Decode(f, stat.Size(), opts...)
}

// OpenContainer parses the container of a map without decoding its items.
func OpenContainer(r io.ReaderAt, size int64, opts ...Option) (*datafile.File, error) {
	o := NewOptions(opts...)
	df, err := datafile.Open(r, size,
		datafile.WithMaxBlobSize(o.MaxBlobSize),
		datafile.WithCacheSize(o.CacheSize),
		datafile.WithLogger(o.Logger),
	)
	if err != nil {
		return nil, &Error{Code: "invalid_header", Message: ErrInvalidHeader.Message, Cause: err}
	}
	return df, nil
}

// Decode reads a map from r, which holds size bytes.
//
// Items that fail to decode are listed in Map.Failures unless WithStrict is
// set. External images are checked when WithMapres is set; problems are
// listed in Map.Advisories.
func Decode(r io.ReaderAt, size int64, opts ...Option) (*Map, error) {
	o := NewOptions(opts...)
	df, err := OpenContainer(r, size, opts...)
	if err != nil {
		return nil, err
	}

	reader := NewItemReader(df, o)
	m, err := reader.Decode(Items(df))
	if err != nil {
		return nil, err
	}

	if o.Mapres != "" {
		for _, a := range img.Advise(m, o.Mapres) {
			o.Logger.Warn(a)
			m.Advisories = append(m.Advisories, a)
		}
	}
	return m, nil
}

// NewItemReader returns an item decoder over the blobs of df.
func NewItemReader(df *datafile.File, o Options) *binary.Reader {
	reader := binary.NewReader(df.Pool)
	reader.SetStrict(o.Strict)
	if o.MaxBlobSize > 0 {
		// a tile grid never needs more cells than one blob can hold
		reader.SetMaxCells(o.MaxBlobSize / binary.TileSize)
	}
	if o.Logger != nil {
		reader.SetLogger(o.Logger)
	}
	return reader
}

// Items converts the container's items for the decoder.
func Items(df *datafile.File) []binary.Item {
	items := make([]binary.Item, len(df.Items))
	for i, it := range df.Items {
		items[i] = binary.Item{Type: it.Type, ID: it.ID, Data: it.Data}
	}
	return items
}

// WriteText writes a readable listing of m.
func WriteText(w io.Writer, m *Map, tiles bool) error {
	writer := text.NewWriter(w)
	writer.SetTiles(tiles)
	return writer.Write(m)
}

// ExportImages writes the embedded images of m as PNG files into dir.
func ExportImages(m *Map, dir string) ([]string, error) {
	return img.Export(m, dir)
}

// Round-trip encoders for the entities that support them
var (
	EncodeImage    = binary.EncodeImage
	EncodeEnvelope = binary.EncodeEnvelope
	EncodeGroup    = binary.EncodeGroup
	EncodeLayer    = binary.EncodeLayer
)

// Common errors
var (
	ErrInvalidHeader = &Error{Code: "invalid_header", Message: "invalid map header"}
)

// Error represents a twmap error
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}
