package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dep2p/go-mcproto/internal/util/varint"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// maxStringLen 协议字符串的最大字节数（32767 个 UTF-16 单元的上限）
const maxStringLen = 32767 * 4

// ============================================================================
//                              读写缓冲
// ============================================================================

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) varint() (int32, error) {
	v, n, err := varint.Decode(r.buf[r.off:])
	if err != nil {
		if err == varint.ErrIncomplete {
			return 0, ErrShortBuffer
		}
		return 0, err
	}
	r.off += n
	return v, nil
}

type writer struct {
	buf []byte
}

// ============================================================================
//                              数据类型
// ============================================================================

// datatype 编译后的数据类型
type datatype interface {
	read(r *reader) (any, error)
	write(w *writer, v any) error
}

// pathError 附带字段路径的错误
type pathError struct {
	path string
	err  error
}

func (e *pathError) Error() string { return e.path + ": " + e.err.Error() }
func (e *pathError) Unwrap() error { return e.err }

// withPath 为错误增加一级路径前缀
func withPath(name string, err error) error {
	if pe, ok := err.(*pathError); ok {
		return &pathError{path: name + "." + pe.path, err: pe.err}
	}
	return &pathError{path: name, err: err}
}

// splitPath 拆出错误中的字段路径
func splitPath(err error) (string, error) {
	if pe, ok := err.(*pathError); ok {
		return pe.path, pe.err
	}
	return "", err
}

func invalid(want string, v any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrInvalidValue, want, v)
}

// compile 将 TypeDef 编译为 datatype
func compile(def TypeDef) (datatype, error) {
	switch def.Type {
	case "varint":
		return varintType{}, nil
	case "varlong":
		return varlongType{}, nil
	case "bool":
		return boolType{}, nil
	case "i8", "u8", "i16", "u16", "i32", "i64":
		return newIntType(def.Type), nil
	case "f32":
		return f32Type{}, nil
	case "f64":
		return f64Type{}, nil
	case "string":
		return stringType{}, nil
	case "uuid":
		return uuidType{}, nil
	case "buffer":
		return bufferType{}, nil
	case "restBuffer":
		return restBufferType{}, nil
	case "option", "array":
		if def.Of == nil {
			return nil, fmt.Errorf("%w: %s without element type", ErrUnknownType, def.Type)
		}
		elem, err := compile(*def.Of)
		if err != nil {
			return nil, err
		}
		if def.Type == "option" {
			return optionType{elem: elem}, nil
		}
		return arrayType{elem: elem}, nil
	case "container":
		return compileContainer(def.Fields)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, def.Type)
}

func compileContainer(fields []FieldDef) (containerType, error) {
	c := containerType{fields: make([]field, 0, len(fields))}
	for _, f := range fields {
		dt, err := compile(f.TypeDef)
		if err != nil {
			return c, withPath(f.Name, err)
		}
		c.fields = append(c.fields, field{name: f.Name, dt: dt})
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// 变长整数
// ---------------------------------------------------------------------------

type varintType struct{}

func (varintType) read(r *reader) (any, error) {
	return r.varint()
}

func (varintType) write(w *writer, v any) error {
	n, ok := toInt64(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return invalid("varint", v)
	}
	w.buf = varint.Append(w.buf, int32(n))
	return nil
}

type varlongType struct{}

func (varlongType) read(r *reader) (any, error) {
	v, n, err := varint.DecodeLong(r.buf[r.off:])
	if err != nil {
		if err == varint.ErrIncomplete {
			return nil, ErrShortBuffer
		}
		return nil, err
	}
	r.off += n
	return v, nil
}

func (varlongType) write(w *writer, v any) error {
	n, ok := toInt64(v)
	if !ok {
		return invalid("varlong", v)
	}
	w.buf = varint.AppendLong(w.buf, n)
	return nil
}

// ---------------------------------------------------------------------------
// 定长数值
// ---------------------------------------------------------------------------

type boolType struct{}

func (boolType) read(r *reader) (any, error) {
	b, err := r.take(1)
	if err != nil {
		return nil, err
	}
	return b[0] != 0, nil
}

func (boolType) write(w *writer, v any) error {
	b, ok := v.(bool)
	if !ok {
		return invalid("bool", v)
	}
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
	return nil
}

// intType 大端定长整数
type intType struct {
	name     string
	size     int
	min, max int64
}

func newIntType(name string) intType {
	switch name {
	case "i8":
		return intType{name, 1, math.MinInt8, math.MaxInt8}
	case "u8":
		return intType{name, 1, 0, math.MaxUint8}
	case "i16":
		return intType{name, 2, math.MinInt16, math.MaxInt16}
	case "u16":
		return intType{name, 2, 0, math.MaxUint16}
	case "i32":
		return intType{name, 4, math.MinInt32, math.MaxInt32}
	default:
		return intType{name, 8, math.MinInt64, math.MaxInt64}
	}
}

func (t intType) read(r *reader) (any, error) {
	b, err := r.take(t.size)
	if err != nil {
		return nil, err
	}
	switch t.name {
	case "i8":
		return int8(b[0]), nil
	case "u8":
		return b[0], nil
	case "i16":
		return int16(binary.BigEndian.Uint16(b)), nil
	case "u16":
		return binary.BigEndian.Uint16(b), nil
	case "i32":
		return int32(binary.BigEndian.Uint32(b)), nil
	default:
		return int64(binary.BigEndian.Uint64(b)), nil
	}
}

func (t intType) write(w *writer, v any) error {
	n, ok := toInt64(v)
	if !ok || n < t.min || n > t.max {
		return invalid(t.name, v)
	}
	switch t.size {
	case 1:
		w.buf = append(w.buf, byte(n))
	case 2:
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	case 4:
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	default:
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(n))
	}
	return nil
}

type f32Type struct{}

func (f32Type) read(r *reader) (any, error) {
	b, err := r.take(4)
	if err != nil {
		return nil, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

func (f32Type) write(w *writer, v any) error {
	f, ok := toFloat64(v)
	if !ok {
		return invalid("f32", v)
	}
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(float32(f)))
	return nil
}

type f64Type struct{}

func (f64Type) read(r *reader) (any, error) {
	b, err := r.take(8)
	if err != nil {
		return nil, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (f64Type) write(w *writer, v any) error {
	f, ok := toFloat64(v)
	if !ok {
		return invalid("f64", v)
	}
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(f))
	return nil
}

// ---------------------------------------------------------------------------
// 字节与字符串
// ---------------------------------------------------------------------------

type stringType struct{}

func (stringType) read(r *reader) (any, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxStringLen {
		return nil, fmt.Errorf("%w: string length %d", ErrInvalidValue, n)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (stringType) write(w *writer, v any) error {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case fmt.Stringer:
		s = x.String()
	default:
		return invalid("string", v)
	}
	if len(s) > maxStringLen {
		return fmt.Errorf("%w: string length %d", ErrInvalidValue, len(s))
	}
	w.buf = varint.Append(w.buf, int32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

type uuidType struct{}

func (uuidType) read(r *reader) (any, error) {
	b, err := r.take(16)
	if err != nil {
		return nil, err
	}
	id, _ := uuid.FromBytes(b)
	return id, nil
}

func (uuidType) write(w *writer, v any) error {
	var id uuid.UUID
	switch x := v.(type) {
	case uuid.UUID:
		id = x
	case string:
		parsed, err := uuid.Parse(x)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		id = parsed
	case []byte:
		parsed, err := uuid.FromBytes(x)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		id = parsed
	default:
		return invalid("uuid", v)
	}
	w.buf = append(w.buf, id[:]...)
	return nil
}

type bufferType struct{}

func (bufferType) read(r *reader) (any, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (bufferType) write(w *writer, v any) error {
	b, ok := toBytes(v)
	if !ok {
		return invalid("buffer", v)
	}
	w.buf = varint.Append(w.buf, int32(len(b)))
	w.buf = append(w.buf, b...)
	return nil
}

type restBufferType struct{}

func (restBufferType) read(r *reader) (any, error) {
	b, _ := r.take(r.remaining())
	return append([]byte{}, b...), nil
}

func (restBufferType) write(w *writer, v any) error {
	b, ok := toBytes(v)
	if !ok {
		return invalid("restBuffer", v)
	}
	w.buf = append(w.buf, b...)
	return nil
}

// ---------------------------------------------------------------------------
// 复合类型
// ---------------------------------------------------------------------------

// optionType bool 前缀的可选值，nil 表示缺省
type optionType struct {
	elem datatype
}

func (t optionType) read(r *reader) (any, error) {
	b, err := r.take(1)
	if err != nil {
		return nil, err
	}
	if b[0] == 0 {
		return nil, nil
	}
	return t.elem.read(r)
}

func (t optionType) write(w *writer, v any) error {
	if v == nil {
		w.buf = append(w.buf, 0)
		return nil
	}
	w.buf = append(w.buf, 1)
	return t.elem.write(w, v)
}

// arrayType varint 计数前缀的数组
type arrayType struct {
	elem datatype
}

func (t arrayType) read(r *reader) (any, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	// 每个元素至少一个字节
	if n < 0 || int(n) > r.remaining() {
		return nil, fmt.Errorf("%w: array count %d", ErrInvalidValue, n)
	}
	out := make([]any, 0, n)
	for i := 0; i < int(n); i++ {
		v, err := t.elem.read(r)
		if err != nil {
			return out, withPath(strconv.Itoa(i), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (t arrayType) write(w *writer, v any) error {
	items, ok := toSlice(v)
	if !ok {
		return invalid("array", v)
	}
	w.buf = varint.Append(w.buf, int32(len(items)))
	for i, item := range items {
		if err := t.elem.write(w, item); err != nil {
			return withPath(strconv.Itoa(i), err)
		}
	}
	return nil
}

type field struct {
	name string
	dt   datatype
}

// containerType 按顺序排列的具名字段
type containerType struct {
	fields []field
}

// read 失败时返回已解析的部分字段
func (t containerType) read(r *reader) (any, error) {
	out := make(types.Params, len(t.fields))
	for _, f := range t.fields {
		v, err := f.dt.read(r)
		if err != nil {
			return out, withPath(f.name, err)
		}
		out[f.name] = v
	}
	return out, nil
}

func (t containerType) write(w *writer, v any) error {
	params, ok := toParams(v)
	if !ok {
		return invalid("container", v)
	}
	for _, f := range t.fields {
		fv, present := params[f.name]
		if !present {
			if _, isOption := f.dt.(optionType); !isOption {
				return withPath(f.name, ErrMissingField)
			}
		}
		if err := f.dt.write(w, fv); err != nil {
			return withPath(f.name, err)
		}
	}
	return nil
}

// ============================================================================
//                              值转换
// ============================================================================

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), x <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	case float32:
		return int64(x), float32(int64(x)) == x
	case float64:
		return int64(x), float64(int64(x)) == x
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func toBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	case nil:
		return nil, true
	}
	return nil, false
}

func toSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []types.Params:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	case []string:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	case []int32:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	case nil:
		return nil, true
	}
	return nil, false
}

func toParams(v any) (types.Params, bool) {
	switch x := v.(type) {
	case types.Params:
		return x, true
	case nil:
		return types.Params{}, true
	}
	return nil, false
}

// joinPath 拼接点分路径，忽略空段
func joinPath(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}
