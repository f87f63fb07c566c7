// Package npy reads and writes arrays in the NumPy .npy binary format.
//
// Arrays are always held as row-major float32. Writing produces a version 1.0
// (or 2.0 for very large headers) little-endian '<f4' file; reading accepts
// any numeric dtype in either byte order and C or Fortran order.
package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"
)

const (
	MediaType     = "application/x.peltarion.npy"
	FileExtension = "npy"

	magic       = "\x93NUMPY"
	headerPad   = 64
	maxV1Header = math.MaxUint16
)

var (
	ErrFormat = errors.New("npy: invalid format")
	ErrDType  = errors.New("npy: unsupported dtype")
	ErrShape  = errors.New("npy: data does not match shape")
)

// Array is a dense row-major float32 array.
type Array struct {
	Shape []int
	Data  []float32
}

// New builds an Array and checks that data fills shape exactly.
func New(shape []int, data []float32) (Array, error) {
	a := Array{Shape: append([]int(nil), shape...), Data: data}
	if err := a.Validate(); err != nil {
		return Array{}, err
	}
	return a, nil
}

// Zeros returns a zero-filled array of the given shape.
func Zeros(shape ...int) Array {
	return Array{Shape: append([]int(nil), shape...), Data: make([]float32, size(shape))}
}

func (a Array) Size() int {
	return size(a.Shape)
}

func (a Array) Validate() error {
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension in %v", ErrShape, a.Shape)
		}
	}
	if len(a.Data) != a.Size() {
		return fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShape, a.Shape, a.Size(), len(a.Data))
	}
	return nil
}

// Equal reports whether both arrays have the same shape and values.
func (a Array) Equal(b Array) bool {
	if len(a.Shape) != len(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] && !(isNaN(a.Data[i]) && isNaN(b.Data[i])) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the array.
func (a Array) Clone() Array {
	return Array{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float32(nil), a.Data...),
	}
}

// Marshal encodes the array as a .npy file.
func Marshal(a Array) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a .npy file into a float32 array.
func Unmarshal(data []byte) (Array, error) {
	return Read(bytes.NewReader(data))
}

// Write encodes the array as a little-endian float32 .npy file.
func Write(w io.Writer, a Array) error {
	if err := a.Validate(); err != nil {
		return err
	}
	h := header{descr: dtype{order: binary.LittleEndian, kind: 'f', size: 4}, shape: a.Shape}
	if _, err := w.Write(h.encode()); err != nil {
		return err
	}
	body := make([]byte, 4*len(a.Data))
	for i, v := range a.Data {
		binary.LittleEndian.PutUint32(body[4*i:], math.Float32bits(v))
	}
	_, err := w.Write(body)
	return err
}

// Read decodes a .npy stream into a float32 array. When r reports its
// remaining length (bytes.Reader, bytes.Buffer) a shape larger than the data
// is rejected before anything is allocated.
func Read(r io.Reader) (Array, error) {
	h, err := readHeader(r)
	if err != nil {
		return Array{}, err
	}
	n, nbytes, err := h.dataSize()
	if err != nil {
		return Array{}, err
	}
	if l, ok := r.(interface{ Len() int }); ok && nbytes > l.Len() {
		return Array{}, fmt.Errorf("%w: shape %v needs %d bytes, got %d", ErrShape, h.shape, nbytes, l.Len())
	}
	body, err := io.ReadAll(io.LimitReader(r, int64(nbytes)))
	if err != nil {
		return Array{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(body) < nbytes {
		return Array{}, fmt.Errorf("%w: truncated data: want %d bytes, got %d", ErrFormat, nbytes, len(body))
	}
	data := make([]float32, n)
	for i := range data {
		v, err := h.descr.float32At(body[i*h.descr.size : (i+1)*h.descr.size])
		if err != nil {
			return Array{}, err
		}
		data[i] = v
	}
	if h.fortranOrder && len(h.shape) > 1 {
		data = fortranToC(data, h.shape)
	}
	return Array{Shape: h.shape, Data: data}, nil
}

// fortranToC reorders column-major data into row-major order.
func fortranToC(data []float32, shape []int) []float32 {
	out := make([]float32, len(data))
	idx := make([]int, len(shape))
	for i := range out {
		rem := i
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d] = rem % shape[d]
			rem /= shape[d]
		}
		f, stride := 0, 1
		for d := 0; d < len(shape); d++ {
			f += idx[d] * stride
			stride *= shape[d]
		}
		out[i] = data[f]
	}
	return out
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func isNaN(f float32) bool {
	return f != f
}

func float16At(order binary.ByteOrder, b []byte) float32 {
	return float16.Frombits(order.Uint16(b)).Float32()
}
