package command

import (
	"encoding/binary"
	"fmt"
)

// AuxKind discriminates concrete Auxiliary payloads on the wire.
type AuxKind uint8

const (
	AuxKindNone AuxKind = iota
	AuxKindStationLayout
)

// Auxiliary is optional structured data attached to an invocation. Queue
// entries are value-copied, so payloads must deep-clone; network transport
// requires a lossless serialise/deserialise round trip of every field the
// handler reads.
type Auxiliary interface {
	Kind() AuxKind
	CloneAux() Auxiliary
	Serialise() []byte
}

// DeserialiseAux reconstructs a payload from its wire form. The kind byte is
// carried separately in the envelope.
func DeserialiseAux(kind AuxKind, data []byte) (Auxiliary, error) {
	switch kind {
	case AuxKindNone:
		return nil, nil
	case AuxKindStationLayout:
		return deserialiseStationLayout(data)
	default:
		return nil, fmt.Errorf("aux: unknown kind %d", kind)
	}
}

// StationLayout describes the tiles a station build covers, as offsets from
// the command tile, plus the platform orientation.
type StationLayout struct {
	Orientation uint8
	Offsets     []int32
}

func (s *StationLayout) Kind() AuxKind { return AuxKindStationLayout }

func (s *StationLayout) CloneAux() Auxiliary {
	cp := &StationLayout{Orientation: s.Orientation}
	cp.Offsets = append([]int32(nil), s.Offsets...)
	return cp
}

func (s *StationLayout) Serialise() []byte {
	buf := make([]byte, 0, 3+4*len(s.Offsets))
	buf = append(buf, s.Orientation)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s.Offsets)))
	for _, off := range s.Offsets {
		buf = binary.BigEndian.AppendUint32(buf, uint32(off))
	}
	return buf
}

func deserialiseStationLayout(data []byte) (*StationLayout, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("aux: station layout truncated (%d bytes)", len(data))
	}
	s := &StationLayout{Orientation: data[0]}
	n := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) != 3+4*n {
		return nil, fmt.Errorf("aux: station layout length mismatch: header %d, payload %d bytes", n, len(data)-3)
	}
	s.Offsets = make([]int32, n)
	for i := 0; i < n; i++ {
		s.Offsets[i] = int32(binary.BigEndian.Uint32(data[3+4*i:]))
	}
	return s, nil
}
