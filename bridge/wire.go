package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// DefaultMaxFrame bounds the size of a single encoded message.
const DefaultMaxFrame = 1 << 20

const frameHeaderSize = 4

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bridge: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("bridge: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// MarshalMessage serializes a Message to CBOR bytes.
func MarshalMessage(m *Message) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalMessage deserializes a Message from CBOR bytes.
func UnmarshalMessage(data []byte) (*Message, error) {
	var m Message
	if err := cborDecMode.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal message: %w", err)
	}
	if m.Kind == 0 {
		return nil, errors.New("bridge: unmarshal message: missing kind")
	}
	return &m, nil
}

// WriteFrame writes m as a 4-byte big-endian length followed by its CBOR
// encoding. The caller flushes w if it is buffered.
func WriteFrame(w io.Writer, m *Message) error {
	body, err := MarshalMessage(m)
	if err != nil {
		return fmt.Errorf("bridge: marshal %s: %w", m.Kind, err)
	}
	var hdr [frameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one frame from r. It returns io.EOF only if the stream
// ends cleanly before a frame begins; a frame cut short is
// io.ErrUnexpectedEOF. Frames larger than maxFrame are rejected.
func ReadFrame(r io.Reader, maxFrame int) (*Message, error) {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, errors.New("bridge: empty frame")
	}
	if uint64(n) > uint64(maxFrame) {
		return nil, fmt.Errorf("bridge: frame of %d bytes exceeds limit %d", n, maxFrame)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return UnmarshalMessage(body)
}
