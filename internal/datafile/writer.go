package datafile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Builder accumulates items and blobs and writes a version 4 container
type Builder struct {
	endian binary.ByteOrder
	items  []Item
	blobs  [][]byte // Uncompressed
}

// NewBuilder creates an empty container builder
func NewBuilder() *Builder {
	return &Builder{endian: binary.LittleEndian}
}

// AddItem appends an item. Items are grouped by type on write.
func (b *Builder) AddItem(typ, id int, data []byte) {
	b.items = append(b.items, Item{Type: typ, ID: id, Data: data})
}

// AddData appends an uncompressed blob and returns its index.
func (b *Builder) AddData(blob []byte) int32 {
	b.blobs = append(b.blobs, blob)
	return int32(len(b.blobs) - 1)
}

// WriteTo writes the container to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	items := append([]Item(nil), b.items...)
	sortItems(items)

	var types []ItemType
	for i, it := range items {
		if n := len(types); n > 0 && types[n-1].Type == int32(it.Type) {
			types[n-1].Num++
			continue
		}
		types = append(types, ItemType{Type: int32(it.Type), Start: int32(i), Num: 1})
	}

	itemArea := &bytes.Buffer{}
	itemOffsets := make([]int32, len(items))
	for i, it := range items {
		itemOffsets[i] = int32(itemArea.Len())
		b.putInt(itemArea, int32(it.Type)<<16|int32(it.ID&0xffff))
		b.putInt(itemArea, int32(len(it.Data)))
		itemArea.Write(it.Data)
	}

	dataArea := &bytes.Buffer{}
	dataOffsets := make([]int32, len(b.blobs))
	dataSizes := make([]int32, len(b.blobs))
	for i, blob := range b.blobs {
		dataOffsets[i] = int32(dataArea.Len())
		dataSizes[i] = int32(len(blob))
		zw := zlib.NewWriter(dataArea)
		if _, err := zw.Write(blob); err != nil {
			return 0, fmt.Errorf("compress blob %d: %w", i, err)
		}
		if err := zw.Close(); err != nil {
			return 0, fmt.Errorf("compress blob %d: %w", i, err)
		}
	}

	tablesSize := len(types)*itemTypeSize + len(items)*4 + 2*len(b.blobs)*4
	fileSize := headerSize + tablesSize + itemArea.Len() + dataArea.Len()

	out := &bytes.Buffer{}
	out.Write(magic[:])
	b.putInt(out, 4)
	b.putInt(out, int32(fileSize-16))
	b.putInt(out, int32(fileSize-16-dataArea.Len()))
	b.putInt(out, int32(len(types)))
	b.putInt(out, int32(len(items)))
	b.putInt(out, int32(len(b.blobs)))
	b.putInt(out, int32(itemArea.Len()))
	b.putInt(out, int32(dataArea.Len()))
	for _, t := range types {
		b.putInt(out, t.Type)
		b.putInt(out, t.Start)
		b.putInt(out, t.Num)
	}
	for _, v := range itemOffsets {
		b.putInt(out, v)
	}
	for _, v := range dataOffsets {
		b.putInt(out, v)
	}
	for _, v := range dataSizes {
		b.putInt(out, v)
	}
	itemArea.WriteTo(out)
	dataArea.WriteTo(out)

	return out.WriteTo(w)
}

func (b *Builder) putInt(buf *bytes.Buffer, v int32) {
	var tmp [4]byte
	b.endian.PutUint32(tmp[:], uint32(v))
	buf.Write(tmp[:])
}
