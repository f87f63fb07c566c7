package npy

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// rawFile builds a version 1.0 .npy file around an arbitrary header dict.
func rawFile(dict string, body []byte) []byte {
	text := dict + "\n"
	out := append([]byte(magic), 1, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(text)))
	out = append(out, text...)
	return append(out, body...)
}

func TestMarshal_Header(t *testing.T) {
	a, err := New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	b, err := Marshal(a)
	require.NoError(t, err)

	assert.Equal(t, magic, string(b[:6]))
	assert.Equal(t, byte(1), b[6])
	hlen := int(binary.LittleEndian.Uint16(b[8:10]))
	assert.Equal(t, 0, (10+hlen)%64)
	assert.Equal(t, byte('\n'), b[10+hlen-1])
	assert.Contains(t, string(b[10:10+hlen]), "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 3), }")
	assert.Len(t, b, 10+hlen+6*4)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		data  []float32
	}{
		{name: "scalar", shape: []int{}, data: []float32{3.5}},
		{name: "vector", shape: []int{4}, data: []float32{-1, 0, 1.25, math.MaxFloat32}},
		{name: "matrix", shape: []int{2, 2}, data: []float32{1e-7, 2, 3, 4}},
		{name: "empty", shape: []int{0, 3}, data: []float32{}},
		{name: "nan", shape: []int{1}, data: []float32{float32(math.NaN())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.shape, tt.data)
			require.NoError(t, err)
			b, err := Marshal(a)
			require.NoError(t, err)
			got, err := Unmarshal(b)
			require.NoError(t, err)
			assert.True(t, a.Equal(got), "got %v", got)
		})
	}
}

func TestRoundTrip_LargeArray(t *testing.T) {
	a := Zeros(100, 10, 3)
	for i := range a.Data {
		a.Data[i] = float32(i) / 7
	}
	b, err := Marshal(a)
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 10, 3}, got.Shape)
	assert.True(t, a.Equal(got))
}

func TestNew_ShapeMismatch(t *testing.T) {
	_, err := New([]int{2, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrShape)

	_, err = New([]int{-1}, nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestRead_Dtypes(t *testing.T) {
	f8 := make([]byte, 16)
	binary.BigEndian.PutUint64(f8, math.Float64bits(1.5))
	binary.BigEndian.PutUint64(f8[8:], math.Float64bits(-2))

	f2 := make([]byte, 4)
	binary.LittleEndian.PutUint16(f2, float16.Fromfloat32(0.5).Bits())
	binary.LittleEndian.PutUint16(f2[2:], float16.Fromfloat32(-4).Bits())

	i2 := make([]byte, 4)
	binary.LittleEndian.PutUint16(i2, uint16(0xFFFF))
	binary.LittleEndian.PutUint16(i2[2:], 300)

	tests := []struct {
		name  string
		descr string
		body  []byte
		want  []float32
	}{
		{name: "big endian float64", descr: ">f8", body: f8, want: []float32{1.5, -2}},
		{name: "float16", descr: "<f2", body: f2, want: []float32{0.5, -4}},
		{name: "int16", descr: "<i2", body: i2, want: []float32{-1, 300}},
		{name: "uint8", descr: "|u1", body: []byte{7, 255}, want: []float32{7, 255}},
		{name: "int8", descr: "|i1", body: []byte{0x80, 1}, want: []float32{-128, 1}},
		{name: "bool", descr: "|b1", body: []byte{1, 0}, want: []float32{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dict := "{'descr': '" + tt.descr + "', 'fortran_order': False, 'shape': (2,), }"
			got, err := Unmarshal(rawFile(dict, tt.body))
			require.NoError(t, err)
			assert.Equal(t, []int{2}, got.Shape)
			assert.Equal(t, tt.want, got.Data)
		})
	}
}

func TestRead_FortranOrder(t *testing.T) {
	// [[1, 2, 3], [4, 5, 6]] stored column by column
	body := make([]byte, 0, 24)
	for _, v := range []float32{1, 4, 2, 5, 3, 6} {
		body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v))
	}
	got, err := Unmarshal(rawFile("{'descr': '<f4', 'fortran_order': True, 'shape': (2, 3), }", body))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, got.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got.Data)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "bad magic", data: []byte("not an npy file at all"), wantErr: ErrFormat},
		{name: "too short", data: []byte{0x93}, wantErr: ErrFormat},
		{name: "unsupported dtype", data: rawFile("{'descr': '<c8', 'fortran_order': False, 'shape': (1,), }", make([]byte, 8)), wantErr: ErrDType},
		{name: "missing shape", data: rawFile("{'descr': '<f4', 'fortran_order': False, }", nil), wantErr: ErrFormat},
		{name: "truncated body", data: rawFile("{'descr': '<f4', 'fortran_order': False, 'shape': (3,), }", make([]byte, 4)), wantErr: ErrShape},
		{name: "overflowing shape", data: rawFile("{'descr': '<f4', 'fortran_order': False, 'shape': (9223372036854775807, 2), }", make([]byte, 8)), wantErr: ErrShape},
		{name: "overflowing byte size", data: rawFile("{'descr': '<f8', 'fortran_order': False, 'shape': (4611686018427387904,), }", make([]byte, 8)), wantErr: ErrShape},
		{name: "shape larger than data", data: rawFile("{'descr': '<f4', 'fortran_order': False, 'shape': (1000000000000,), }", make([]byte, 8)), wantErr: ErrShape},
		{name: "truncated header", data: rawFile("{'descr': '<f4', 'fortran_order': False, 'shape': (1,), }", nil)[:20], wantErr: ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClone(t *testing.T) {
	a := Zeros(2)
	c := a.Clone()
	c.Data[0] = 9
	c.Shape[0] = 5
	assert.Equal(t, float32(0), a.Data[0])
	assert.Equal(t, 2, a.Shape[0])
}

func TestRead_TruncatedStream(t *testing.T) {
	data := rawFile("{'descr': '<f4', 'fortran_order': False, 'shape': (3,), }", make([]byte, 4))
	_, err := Read(onlyReader{bytes.NewReader(data)})
	assert.ErrorIs(t, err, ErrFormat)

	data = rawFile("{'descr': '<f4', 'fortran_order': False, 'shape': (1000000000000,), }", make([]byte, 8))
	_, err = Read(onlyReader{bytes.NewReader(data)})
	assert.ErrorIs(t, err, ErrFormat)
}

// onlyReader hides the Len method of the wrapped reader.
type onlyReader struct {
	r io.Reader
}

func (o onlyReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}
