package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the width of the big-endian payload length preceding every
// payload on the wire.
const HeaderSize = 4

// DefaultMaxPayloadSize bounds the payload a reader accepts when no explicit
// limit is configured.
const DefaultMaxPayloadSize = 64 * 1024

// Encode marshals m and returns its complete frame: length header followed
// by the payload.
func Encode(m Message) ([]byte, error) {
	payload, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	return frame(payload), nil
}

// Decode is the inverse of Encode for a single complete frame held in memory.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return nil, &TransportError{Err: io.ErrUnexpectedEOF}
	}
	size := binary.BigEndian.Uint32(data)
	if uint64(len(data)-HeaderSize) != uint64(size) {
		return nil, badFormat(data[HeaderSize:], fmt.Errorf("frame declares %d bytes, holds %d", size, len(data)-HeaderSize))
	}
	return Unmarshal(data[HeaderSize:])
}

// WriteFrame writes payload preceded by its length header in a single Write
// so concurrent frames on a shared stream cannot interleave.
func WriteFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(frame(payload)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadPayload reads exactly one frame from r and returns its payload.
//
// It returns io.EOF when r is exhausted before the first header byte, which is
// the normal close signal. A frame cut short yields a *TransportError and a
// declared length above limit yields a *BadFormatError. A limit <= 0 means
// DefaultMaxPayloadSize.
func ReadPayload(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxPayloadSize
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &TransportError{Err: err}
	}

	size := binary.BigEndian.Uint32(header[:])
	if uint64(size) > uint64(limit) {
		return nil, badFormat(nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, limit))
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &TransportError{Err: err}
	}
	return payload, nil
}

// ReadFrame reads and decodes one frame from r.
func ReadFrame(r io.Reader) (Message, error) {
	payload, err := ReadPayload(r, DefaultMaxPayloadSize)
	if err != nil {
		return nil, err
	}
	return Unmarshal(payload)
}

func frame(payload []byte) []byte {
	buf := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}
