package docdata

import (
	"reflect"
	"testing"
)

func TestFlattenSchemaNamesMergesScalarsAndArrays(t *testing.T) {
	raws := [][]byte{
		[]byte(`"Invoice"`),
		[]byte(`["Receipt","Invoice"]`),
		[]byte(`"Receipt"`),
		[]byte(`[" Purchase Order ", 7, null, ""]`),
		[]byte(`{"nested":"ignored"}`),
		[]byte(`12`),
		nil,
		[]byte(`not json`),
	}

	got := FlattenSchemaNames(raws)
	want := []string{"Invoice", "Purchase Order", "Receipt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FlattenSchemaNames() = %v, want %v", got, want)
	}
}

func TestFlattenSchemaNamesEmpty(t *testing.T) {
	got := FlattenSchemaNames(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}
