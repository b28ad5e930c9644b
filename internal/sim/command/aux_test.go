package command

import (
	"reflect"
	"testing"
)

func TestStationLayout_SerialiseRoundTrip(t *testing.T) {
	in := &StationLayout{Orientation: 2, Offsets: []int32{0, 1, 64, -64}}
	out, err := DeserialiseAux(AuxKindStationLayout, in.Serialise())
	if err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	got, ok := out.(*StationLayout)
	if !ok {
		t.Fatalf("wrong payload type %T", out)
	}
	if got.Orientation != in.Orientation || !reflect.DeepEqual(got.Offsets, in.Offsets) {
		t.Fatalf("round trip lost fields: %+v vs %+v", got, in)
	}
}

func TestDeserialiseAux_RejectsTruncatedAndUnknown(t *testing.T) {
	if _, err := DeserialiseAux(AuxKindStationLayout, []byte{1}); err == nil {
		t.Fatalf("truncated payload must be rejected")
	}
	if _, err := DeserialiseAux(AuxKindStationLayout, []byte{1, 0, 2, 0}); err == nil {
		t.Fatalf("length mismatch must be rejected")
	}
	if _, err := DeserialiseAux(AuxKind(200), nil); err == nil {
		t.Fatalf("unknown kind must be rejected")
	}
	if aux, err := DeserialiseAux(AuxKindNone, nil); err != nil || aux != nil {
		t.Fatalf("kind none must decode to nil payload")
	}
}

func TestStationLayout_CloneIsDeep(t *testing.T) {
	a := &StationLayout{Orientation: 1, Offsets: []int32{5}}
	b := a.CloneAux().(*StationLayout)
	b.Offsets[0] = 6
	if a.Offsets[0] != 5 {
		t.Fatalf("clone shares backing array")
	}
}
