package binary

import (
	"github.com/dyuri/twmap/internal/model"
)

// Sub-record sizes in bytes
const (
	TileSize    = 4
	TeleSize    = 2
	SpeedupSize = 3
	QuadSize    = 152 // 38 words
)

// scanRecords splits buf into fixed-size records. A buffer that is not an
// exact multiple of stride is rejected rather than truncated.
func scanRecords[T any](what string, buf []byte, stride int, decode func([]byte) T) ([]T, error) {
	if len(buf)%stride != 0 {
		return nil, &model.FormatError{What: what, Len: len(buf), Stride: stride}
	}
	out := make([]T, len(buf)/stride)
	for i := range out {
		out[i] = decode(buf[i*stride : (i+1)*stride])
	}
	return out, nil
}

// DecodeTiles reads 4-byte tile records: index, flags, skip, reserved.
func DecodeTiles(buf []byte) ([]model.Tile, error) {
	return scanRecords("tile data", buf, TileSize, func(b []byte) model.Tile {
		return model.Tile{Index: b[0], Flags: b[1], Skip: b[2], Reserved: b[3]}
	})
}

// ExpandTiles undoes the run-length packing of tile map version 4 and later:
// every record stands for itself followed by Skip copies of itself. Runs that
// add up to more than cells fail with a *FormatError before anything is
// allocated.
func ExpandTiles(packed []model.Tile, cells int) ([]model.Tile, error) {
	n := 0
	for _, t := range packed {
		n += int(t.Skip) + 1
		if n > cells {
			return nil, &model.FormatError{What: "packed tile runs exceed the grid", Len: len(packed) * TileSize}
		}
	}
	out := make([]model.Tile, 0, n)
	for _, t := range packed {
		run := int(t.Skip) + 1
		t.Skip = 0
		for i := 0; i < run; i++ {
			out = append(out, t)
		}
	}
	return out, nil
}

// DecodeTeleTiles reads 2-byte tele records: number, type.
func DecodeTeleTiles(buf []byte) ([]model.TeleTile, error) {
	return scanRecords("tele data", buf, TeleSize, func(b []byte) model.TeleTile {
		return model.TeleTile{Number: b[0], Type: b[1]}
	})
}

// DecodeSpeedupTiles reads 3-byte speedup records: force, then a signed
// 16-bit angle.
func DecodeSpeedupTiles(buf []byte) ([]model.SpeedupTile, error) {
	return scanRecords("speedup data", buf, SpeedupSize, func(b []byte) model.SpeedupTile {
		return model.SpeedupTile{Force: b[0], Angle: int16(byteOrder.Uint16(b[1:3]))}
	})
}

// DecodeQuads reads 152-byte quad records.
func DecodeQuads(buf []byte) ([]model.Quad, error) {
	return scanRecords("quad data", buf, QuadSize, decodeQuad)
}

func decodeQuad(b []byte) model.Quad {
	w := func(i int) int32 {
		return int32(byteOrder.Uint32(b[i*4:]))
	}
	var q model.Quad
	for i := range q.Points {
		q.Points[i] = model.Point{X: w(i * 2), Y: w(i*2 + 1)}
	}
	for i := range q.Colors {
		q.Colors[i] = model.Color{R: w(10 + i*4), G: w(11 + i*4), B: w(12 + i*4), A: w(13 + i*4)}
	}
	for i := range q.TexCoords {
		q.TexCoords[i] = model.Point{X: w(26 + i*2), Y: w(27 + i*2)}
	}
	q.PosEnv = w(34)
	q.PosEnvOffset = w(35)
	q.ColorEnv = w(36)
	q.ColorEnvOffset = w(37)
	return q
}

// EncodeTiles serializes tiles as uncompressed 4-byte records, the layout of
// tile map versions before 4. It is meant for grids built in memory; it does
// not reproduce run-length packed data.
func EncodeTiles(tiles []model.Tile) []byte {
	buf := make([]byte, 0, len(tiles)*TileSize)
	for _, t := range tiles {
		buf = append(buf, t.Index, t.Flags, t.Skip, t.Reserved)
	}
	return buf
}

// EncodeQuads serializes quads as 152-byte records.
func EncodeQuads(quads []model.Quad) []byte {
	words := make([]int32, 0, len(quads)*QuadSize/4)
	for _, q := range quads {
		for _, p := range q.Points {
			words = append(words, p.X, p.Y)
		}
		for _, c := range q.Colors {
			words = append(words, c.R, c.G, c.B, c.A)
		}
		for _, p := range q.TexCoords {
			words = append(words, p.X, p.Y)
		}
		words = append(words, q.PosEnv, q.PosEnvOffset, q.ColorEnv, q.ColorEnvOffset)
	}
	return PutWords(words)
}
