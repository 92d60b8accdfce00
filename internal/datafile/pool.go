package datafile

import (
	"bytes"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dyuri/twmap/internal/model"
)

// DataPool serves the container's data blobs by index. It is read-only and
// safe to share between decoders of one load pass.
type DataPool struct {
	r          io.ReaderAt
	offsets    []int32
	sizes      []int32 // Declared uncompressed sizes, nil before version 4
	dataSize   int32
	compressed bool
	maxSize    int64
	cache      *lru.Cache[int32, []byte]
	log        logrus.FieldLogger
}

// NewPool creates a pool over a data area of dataSize bytes read from r.
// Blob i spans offsets[i] up to the next offset, or to the end of the area.
func NewPool(r io.ReaderAt, offsets, sizes []int32, dataSize int32, compressed bool, opts Options) (*DataPool, error) {
	p := &DataPool{
		r:          r,
		offsets:    offsets,
		sizes:      sizes,
		dataSize:   dataSize,
		compressed: compressed,
		maxSize:    opts.MaxBlobSize,
		log:        opts.Logger,
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[int32, []byte](opts.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create blob cache")
		}
		p.cache = cache
	}
	return p, nil
}

// Size returns the number of blobs.
func (p *DataPool) Size() int {
	return len(p.offsets)
}

// Fetch returns blob index, decompressed. The returned slice belongs to the
// caller.
func (p *DataPool) Fetch(index int32) ([]byte, error) {
	if index < 0 || int(index) >= len(p.offsets) {
		return nil, &model.RangeError{What: "raw data", Index: int(index), Size: len(p.offsets)}
	}
	if p.cache != nil {
		if data, ok := p.cache.Get(index); ok {
			return bytes.Clone(data), nil
		}
	}

	raw, err := p.Raw(index)
	if err != nil {
		return nil, err
	}
	data := raw
	if p.compressed {
		if data, err = p.inflate(index, raw); err != nil {
			return nil, err
		}
	}

	p.log.WithFields(logrus.Fields{"index": index, "stored": len(raw), "size": len(data)}).Debug("fetched blob")
	if p.cache != nil {
		p.cache.Add(index, data)
		return bytes.Clone(data), nil
	}
	return data, nil
}

// Raw returns blob index exactly as stored.
func (p *DataPool) Raw(index int32) ([]byte, error) {
	if index < 0 || int(index) >= len(p.offsets) {
		return nil, &model.RangeError{What: "raw data", Index: int(index), Size: len(p.offsets)}
	}
	start := p.offsets[index]
	end := p.dataSize
	if int(index)+1 < len(p.offsets) {
		end = p.offsets[index+1]
	}
	if start < 0 || end < start || end > p.dataSize {
		return nil, &model.FormatError{What: "raw data offsets", Len: int(end - start)}
	}

	raw := make([]byte, end-start)
	if _, err := p.r.ReadAt(raw, int64(start)); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read raw data %d", index)
	}
	return raw, nil
}

func (p *DataPool) inflate(index int32, raw []byte) ([]byte, error) {
	if p.sizes != nil && p.maxSize > 0 && int64(p.sizes[index]) > p.maxSize {
		return nil, &model.FormatError{What: "declared raw data size over limit", Len: int(p.sizes[index])}
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "inflate raw data %d", index)
	}
	defer zr.Close()

	var src io.Reader = zr
	if p.maxSize > 0 {
		src = io.LimitReader(zr, p.maxSize+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrapf(err, "inflate raw data %d", index)
	}
	if p.maxSize > 0 && int64(len(data)) > p.maxSize {
		return nil, &model.FormatError{What: "raw data inflates over limit", Len: len(data)}
	}
	return data, nil
}
