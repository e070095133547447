// Package frame delimits envelopes on a byte stream: a 4-byte little-endian
// payload length followed by the payload.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

const HeaderLen = 4

var (
	ErrShortHeader     = errors.New("frame: short length header")
	ErrShortPayload    = errors.New("frame: short payload")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrTrailingBytes   = errors.New("frame: trailing bytes after payload")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 1 << 30,
	}
}

func (l Limits) check(n uint64) error {
	if n > uint64(^uint32(0)) {
		return ErrPayloadTooLarge
	}
	if l.MaxPayloadBytes > 0 && n > l.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}
	n := uint64(binary.LittleEndian.Uint32(head[:]))
	if err := limits.check(n); err != nil {
		return nil, err
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, ErrShortPayload
			}
			return nil, err
		}
	}
	return payload, nil
}

func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if err := limits.check(uint64(len(payload))); err != nil {
		return err
	}
	buf := make([]byte, HeaderLen, HeaderLen+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// Append returns payload prefixed with its length header.
func Append(dst, payload []byte, limits Limits) ([]byte, error) {
	if err := limits.check(uint64(len(payload))); err != nil {
		return nil, err
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

// Split parses exactly one frame from b; bytes beyond the frame are an error.
func Split(b []byte, limits Limits) ([]byte, error) {
	if len(b) < HeaderLen {
		return nil, ErrShortHeader
	}
	n := uint64(binary.LittleEndian.Uint32(b[:HeaderLen]))
	if err := limits.check(n); err != nil {
		return nil, err
	}
	rest := b[HeaderLen:]
	if uint64(len(rest)) < n {
		return nil, ErrShortPayload
	}
	if uint64(len(rest)) > n {
		return nil, ErrTrailingBytes
	}
	return rest, nil
}
