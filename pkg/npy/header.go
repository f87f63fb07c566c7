package npy

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	descrPattern   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranPattern = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

type dtype struct {
	order binary.ByteOrder
	kind  byte
	size  int
}

type header struct {
	descr        dtype
	fortranOrder bool
	shape        []int
}

func (d dtype) String() string {
	prefix := "<"
	if d.size == 1 {
		prefix = "|"
	} else if d.order == binary.BigEndian {
		prefix = ">"
	}
	return prefix + string(d.kind) + strconv.Itoa(d.size)
}

func parseDType(descr string) (dtype, error) {
	if len(descr) < 3 {
		return dtype{}, fmt.Errorf("%w: %q", ErrDType, descr)
	}
	d := dtype{order: binary.LittleEndian, kind: descr[1]}
	switch descr[0] {
	case '<', '|', '=':
	case '>':
		d.order = binary.BigEndian
	default:
		return dtype{}, fmt.Errorf("%w: %q", ErrDType, descr)
	}
	n, err := strconv.Atoi(descr[2:])
	if err != nil {
		return dtype{}, fmt.Errorf("%w: %q", ErrDType, descr)
	}
	d.size = n
	switch {
	case d.kind == 'f' && (n == 2 || n == 4 || n == 8):
	case (d.kind == 'i' || d.kind == 'u') && (n == 1 || n == 2 || n == 4 || n == 8):
	case d.kind == 'b' && n == 1:
	default:
		return dtype{}, fmt.Errorf("%w: %q", ErrDType, descr)
	}
	return d, nil
}

func (d dtype) float32At(b []byte) (float32, error) {
	switch d.kind {
	case 'f':
		switch d.size {
		case 2:
			return float16At(d.order, b), nil
		case 4:
			return math.Float32frombits(d.order.Uint32(b)), nil
		case 8:
			return float32(math.Float64frombits(d.order.Uint64(b))), nil
		}
	case 'i':
		switch d.size {
		case 1:
			return float32(int8(b[0])), nil
		case 2:
			return float32(int16(d.order.Uint16(b))), nil
		case 4:
			return float32(int32(d.order.Uint32(b))), nil
		case 8:
			return float32(int64(d.order.Uint64(b))), nil
		}
	case 'u':
		switch d.size {
		case 1:
			return float32(b[0]), nil
		case 2:
			return float32(d.order.Uint16(b)), nil
		case 4:
			return float32(d.order.Uint32(b)), nil
		case 8:
			return float32(d.order.Uint64(b)), nil
		}
	case 'b':
		if b[0] != 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrDType, d)
}

func (h header) dict() string {
	fortran := "False"
	if h.fortranOrder {
		fortran = "True"
	}
	return fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }", h.descr, fortran, formatShape(h.shape))
}

func formatShape(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return "(" + strconv.Itoa(shape[0]) + ",)"
	}
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(dims, ", ") + ")"
}

// encode returns the magic string, version, header length and the padded
// header text. The total is a multiple of 64 bytes and ends in a newline.
func (h header) encode() []byte {
	dict := h.dict()
	for _, v := range []struct {
		major     byte
		lenBytes  int
		maxLength int
	}{
		{major: 1, lenBytes: 2, maxLength: maxV1Header},
		{major: 2, lenBytes: 4, maxLength: math.MaxInt32},
	} {
		preamble := len(magic) + 2 + v.lenBytes
		pad := (headerPad - (preamble+len(dict)+1)%headerPad) % headerPad
		text := dict + strings.Repeat(" ", pad) + "\n"
		if len(text) > v.maxLength {
			continue
		}
		out := make([]byte, 0, preamble+len(text))
		out = append(out, magic...)
		out = append(out, v.major, 0)
		if v.lenBytes == 2 {
			out = binary.LittleEndian.AppendUint16(out, uint16(len(text)))
		} else {
			out = binary.LittleEndian.AppendUint32(out, uint32(len(text)))
		}
		return append(out, text...)
	}
	panic("npy: header too large")
}

func readHeader(r io.Reader) (header, error) {
	pre := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, pre); err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if string(pre[:len(magic)]) != magic {
		return header{}, fmt.Errorf("%w: bad magic string", ErrFormat)
	}
	var hlen int
	switch major := pre[len(magic)]; major {
	case 1:
		b := make([]byte, 2)
		if _, err := io.ReadFull(r, b); err != nil {
			return header{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		hlen = int(binary.LittleEndian.Uint16(b))
	case 2, 3:
		b := make([]byte, 4)
		if _, err := io.ReadFull(r, b); err != nil {
			return header{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		hlen = int(binary.LittleEndian.Uint32(b))
	default:
		return header{}, fmt.Errorf("%w: unsupported version %d", ErrFormat, major)
	}
	text, err := io.ReadAll(io.LimitReader(r, int64(hlen)))
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(text) < hlen {
		return header{}, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	return parseHeader(string(text))
}

func parseHeader(text string) (header, error) {
	var h header
	m := descrPattern.FindStringSubmatch(text)
	if m == nil {
		return header{}, fmt.Errorf("%w: header has no descr", ErrFormat)
	}
	d, err := parseDType(m[1])
	if err != nil {
		return header{}, err
	}
	h.descr = d

	m = fortranPattern.FindStringSubmatch(text)
	if m == nil {
		return header{}, fmt.Errorf("%w: header has no fortran_order", ErrFormat)
	}
	h.fortranOrder = m[1] == "True"

	m = shapePattern.FindStringSubmatch(text)
	if m == nil {
		return header{}, fmt.Errorf("%w: header has no shape", ErrFormat)
	}
	h.shape = []int{}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.TrimSuffix(part, "L")
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return header{}, fmt.Errorf("%w: bad shape %q", ErrFormat, m[1])
		}
		h.shape = append(h.shape, n)
	}
	return h, nil
}

// dataSize returns the element count and body length of the array, failing
// when either does not fit in an int.
func (h header) dataSize() (int, int, error) {
	n := 1
	for _, d := range h.shape {
		if d != 0 && n > math.MaxInt/d {
			return 0, 0, fmt.Errorf("%w: shape %v is too large", ErrShape, h.shape)
		}
		n *= d
	}
	if n > math.MaxInt/h.descr.size {
		return 0, 0, fmt.Errorf("%w: shape %v is too large", ErrShape, h.shape)
	}
	return n, n * h.descr.size, nil
}
