package model

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrFormat = errors.New("format error")
	ErrRange  = errors.New("range error")
	ErrValue  = errors.New("value error")
)

// FormatError reports a buffer whose length does not fit its layout.
type FormatError struct {
	What   string
	Len    int // Offending length in bytes
	Stride int // Expected record size, 0 when not applicable
}

func (e *FormatError) Error() string {
	switch {
	case e.Stride > 0:
		return fmt.Sprintf("%s: length %d is not a multiple of %d", e.What, e.Len, e.Stride)
	case e.Len > 0:
		return fmt.Sprintf("%s: bad length %d", e.What, e.Len)
	}
	return e.What
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// RangeError reports an index outside the bounds of what it refers to.
type RangeError struct {
	What  string
	Index int
	Size  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: index %d out of range [0, %d)", e.What, e.Index, e.Size)
}

func (e *RangeError) Is(target error) bool { return target == ErrRange }

// ValueError reports a value outside the set a field accepts.
type ValueError struct {
	What  string
	Value int
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %d", e.What, e.Value)
}

func (e *ValueError) Is(target error) bool { return target == ErrValue }
