package lib

const (
	defaultBufferLength = 1024
	// larger buffers are not returned to the pool
	maxPooledBufferLength = 64 * 1024
)

// Buffer is a pooled byte buffer for building log lines and encoded values.
type Buffer struct {
	B []byte
}

var (
	buffers = NewPool(func() *Buffer {
		return &Buffer{B: make([]byte, 0, defaultBufferLength)}
	})
)

// TakeBuffer
func TakeBuffer() *Buffer {
	return buffers.Get()
}

// ReleaseBuffer
func ReleaseBuffer(b *Buffer) {
	if cap(b.B) > maxPooledBufferLength {
		return
	}
	b.B = b.B[:0]
	buffers.Put(b)
}

// Reset
func (b *Buffer) Reset() {
	b.B = b.B[:0]
}

// AppendByte
func (b *Buffer) AppendByte(v byte) {
	b.B = append(b.B, v)
}

// AppendString
func (b *Buffer) AppendString(s string) {
	b.B = append(b.B, s...)
}

// Write implements io.Writer
func (b *Buffer) Write(v []byte) (int, error) {
	b.B = append(b.B, v...)
	return len(v), nil
}

// String
func (b *Buffer) String() string {
	return string(b.B)
}

// Len
func (b *Buffer) Len() int {
	return len(b.B)
}
