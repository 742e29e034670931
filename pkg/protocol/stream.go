package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrDesync means the frame boundary was lost; the stream cannot be read further.
var ErrDesync = fmt.Errorf("%w: stream out of sync", ErrMalformed)

// Reader reads frames from a byte stream.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadFrame reads one frame. The command field ends at the first '|' (at most
// MaxCommandSize bytes), followed by the 4-digit length, '|', and exactly length
// payload bytes. When the length header parses, the whole frame is consumed even if
// it is later rejected, so a returned ErrMalformed leaves the stream aligned.
// ErrDesync is returned when it does not.
func (r *Reader) ReadFrame() (Frame, error) {
	var raw bytes.Buffer

	for {
		c, err := r.br.ReadByte()
		if err != nil {
			return Frame{}, readErr(raw.Len(), err)
		}
		raw.WriteByte(c)
		if c == Separator {
			break
		}
		if raw.Len() > MaxCommandSize {
			return Frame{}, ErrDesync
		}
	}

	var lenField [LengthWidth + 1]byte
	if _, err := io.ReadFull(r.br, lenField[:]); err != nil {
		return Frame{}, readErr(raw.Len(), err)
	}
	raw.Write(lenField[:])
	if lenField[LengthWidth] != Separator {
		return Frame{}, ErrDesync
	}
	n, err := parseLength(string(lenField[:LengthWidth]))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrDesync, err)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return Frame{}, readErr(raw.Len(), err)
	}
	raw.Write(payload)

	return Decode(raw.Bytes())
}

func readErr(consumed int, err error) error {
	if consumed > 0 && errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if errors.Is(err, io.EOF) {
		return err
	}
	return fmt.Errorf("read frame: %w", err)
}

// WriteFrame encodes f and writes it in a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	b, err := Encode(f.Command, f.Payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
