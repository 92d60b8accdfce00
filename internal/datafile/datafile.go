// Package datafile reads and writes the map container: a header, an item
// table and a pool of zlib-compressed data blobs. It only moves bytes; item
// payloads are decoded by the binary package.
package datafile

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dyuri/twmap/internal/model"
)

const (
	headerSize   = 36 // magic, version, then seven int32 fields
	itemTypeSize = 12 // type, start, num
	itemHeadSize = 8  // type<<16|id, size
)

var (
	magic        = [4]byte{'D', 'A', 'T', 'A'}
	magicSwapped = [4]byte{'A', 'T', 'A', 'D'}
)

// Header is the fixed part at the start of a container
type Header struct {
	Version      int32 // 3 = raw blobs, 4 = zlib blobs
	Size         int32
	Swaplen      int32
	NumItemTypes int32
	NumItems     int32
	NumRawData   int32
	ItemSize     int32 // Bytes in the item area
	DataSize     int32 // Bytes in the data area
}

// ItemType is an entry of the item type table: items of Type occupy Num
// slots of the item table from Start on.
type ItemType struct {
	Type  int32
	Start int32
	Num   int32
}

// Item is a raw item: a type tag, an id and its payload bytes.
type Item struct {
	Type int
	ID   int
	Data []byte
}

// File is an opened container. Item payloads are read eagerly, data blobs on
// demand through Pool.
type File struct {
	Header Header
	Types  []ItemType
	Items  []Item
	Pool   *DataPool
}

// Reader parses containers
type Reader struct {
	r      io.ReaderAt
	size   int64
	endian binary.ByteOrder
	opts   Options
}

// NewReader creates a container reader over r, which holds size bytes.
func NewReader(r io.ReaderAt, size int64, opts ...Option) *Reader {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader{r: r, size: size, endian: binary.LittleEndian, opts: o}
}

// Open reads the header and tables of a container.
func Open(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	return NewReader(r, size, opts...).Parse()
}

// Parse reads the header, the item table and the data offsets.
func (r *Reader) Parse() (*File, error) {
	header, err := r.ReadHeader()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	tablesSize := int64(header.NumItemTypes)*itemTypeSize +
		int64(header.NumItems)*4 +
		int64(header.NumRawData)*4
	if header.Version >= 4 {
		tablesSize += int64(header.NumRawData) * 4
	}
	itemsStart := headerSize + tablesSize
	dataStart := itemsStart + int64(header.ItemSize)
	if dataStart+int64(header.DataSize) > r.size {
		return nil, &model.FormatError{What: "container shorter than its header declares", Len: int(r.size)}
	}

	tables := make([]byte, tablesSize)
	if _, err := r.r.ReadAt(tables, headerSize); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read tables")
	}

	types := make([]ItemType, header.NumItemTypes)
	pos := 0
	for i := range types {
		types[i] = ItemType{
			Type:  int32(r.endian.Uint32(tables[pos:])),
			Start: int32(r.endian.Uint32(tables[pos+4:])),
			Num:   int32(r.endian.Uint32(tables[pos+8:])),
		}
		pos += itemTypeSize
	}
	itemOffsets := r.readInts(tables[pos:], int(header.NumItems))
	pos += int(header.NumItems) * 4
	dataOffsets := r.readInts(tables[pos:], int(header.NumRawData))
	pos += int(header.NumRawData) * 4
	var dataSizes []int32
	if header.Version >= 4 {
		dataSizes = r.readInts(tables[pos:], int(header.NumRawData))
	}

	items, err := r.readItems(itemsStart, header.ItemSize, itemOffsets)
	if err != nil {
		return nil, errors.Wrap(err, "read items")
	}

	pool, err := NewPool(io.NewSectionReader(r.r, dataStart, int64(header.DataSize)), dataOffsets, dataSizes,
		header.DataSize, header.Version >= 4, r.opts)
	if err != nil {
		return nil, err
	}

	r.opts.Logger.WithFields(logrus.Fields{
		"version": header.Version,
		"items":   header.NumItems,
		"blobs":   header.NumRawData,
	}).Debug("opened container")

	return &File{Header: *header, Types: types, Items: items, Pool: pool}, nil
}

// ReadHeader reads and checks the fixed header.
func (r *Reader) ReadHeader() (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := r.r.ReadAt(buf, 0); err != nil {
		return nil, &model.FormatError{What: "truncated header", Len: int(r.size)}
	}

	var id [4]byte
	copy(id[:], buf[:4])
	if id != magic && id != magicSwapped {
		return nil, errors.Errorf("bad magic %q", id[:])
	}

	h := &Header{
		Version:      int32(r.endian.Uint32(buf[4:])),
		Size:         int32(r.endian.Uint32(buf[8:])),
		Swaplen:      int32(r.endian.Uint32(buf[12:])),
		NumItemTypes: int32(r.endian.Uint32(buf[16:])),
		NumItems:     int32(r.endian.Uint32(buf[20:])),
		NumRawData:   int32(r.endian.Uint32(buf[24:])),
		ItemSize:     int32(r.endian.Uint32(buf[28:])),
		DataSize:     int32(r.endian.Uint32(buf[32:])),
	}
	if h.Version != 3 && h.Version != 4 {
		return nil, errors.Errorf("unsupported container version %d", h.Version)
	}
	if h.NumItemTypes < 0 || h.NumItems < 0 || h.NumRawData < 0 || h.ItemSize < 0 || h.DataSize < 0 {
		return nil, &model.FormatError{What: "negative header field"}
	}
	return h, nil
}

func (r *Reader) readInts(buf []byte, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(r.endian.Uint32(buf[i*4:]))
	}
	return out
}

func (r *Reader) readItems(start int64, size int32, offsets []int32) ([]Item, error) {
	area := make([]byte, size)
	if _, err := r.r.ReadAt(area, start); err != nil && err != io.EOF {
		return nil, err
	}

	items := make([]Item, len(offsets))
	for i, off := range offsets {
		if !inArea(int64(off), itemHeadSize, len(area)) {
			return nil, &model.RangeError{What: "item offset", Index: int(off), Size: len(area)}
		}
		typeAndID := r.endian.Uint32(area[off:])
		n := int32(r.endian.Uint32(area[off+4:]))
		body := int64(off) + itemHeadSize
		if n < 0 || !inArea(body, int64(n), len(area)) {
			return nil, &model.FormatError{What: "item payload", Len: int(n)}
		}
		items[i] = Item{
			Type: int(typeAndID >> 16 & 0xffff),
			ID:   int(typeAndID & 0xffff),
			Data: area[body : body+int64(n)],
		}
	}
	return items, nil
}

func inArea(off, n int64, size int) bool {
	return off >= 0 && off+n <= int64(size)
}

// Find returns the items of the given type in table order.
func (f *File) Find(typ int) []Item {
	var out []Item
	for _, it := range f.Items {
		if it.Type == typ {
			out = append(out, it)
		}
	}
	return out
}

// sortItems orders items by type, then id, the order the type table needs.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].ID < items[j].ID
	})
}
