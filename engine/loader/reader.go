package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// cursor reads little-endian records out of a model file.
type cursor struct {
	buf []byte
	r   *bytes.Reader
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf, r: bytes.NewReader(buf)}
}

// read decodes a fixed-size value at the current offset.
func (c *cursor) read(v any) error {
	if err := binary.Read(c.r, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("truncated file at offset %d: %w", c.offset(), err)
	}
	return nil
}

// bytes returns the next n bytes without copying.
func (c *cursor) bytes(n int) ([]byte, error) {
	off := c.offset()
	if n < 0 || off+n > len(c.buf) {
		return nil, fmt.Errorf("truncated file: need %d bytes at offset %d, have %d", n, off, len(c.buf)-off)
	}
	if _, err := c.r.Seek(int64(n), io.SeekCurrent); err != nil {
		return nil, err
	}
	return c.buf[off : off+n], nil
}

// fits rejects a count of n records of size bytes that the rest of the file cannot hold.
func (c *cursor) fits(n, size int) error {
	left := len(c.buf) - c.offset()
	if n < 0 || size <= 0 || n > left/size {
		return fmt.Errorf("truncated file: %d records of %d bytes at offset %d, have %d bytes", n, size, c.offset(), left)
	}
	return nil
}

// seek moves to an absolute offset.
func (c *cursor) seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return fmt.Errorf("offset %d outside file of %d bytes", off, len(c.buf))
	}
	_, err := c.r.Seek(int64(off), io.SeekStart)
	return err
}

func (c *cursor) offset() int {
	return len(c.buf) - c.r.Len()
}

// cstring trims a fixed-size NUL padded name.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// ident packs a four character file magic the way it is stored on disk.
func ident(s string) int32 {
	return int32(binary.LittleEndian.Uint32([]byte(s)))
}
