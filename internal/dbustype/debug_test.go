package dbustype

import "testing"

func TestRender_Scalars(t *testing.T) {
	if got := Render(Int32(42)); got != "42" {
		t.Errorf("Render(Int32(42)) = %q, want %q", got, "42")
	}
	if got := Render(String("hi")); got != `"hi"` {
		t.Errorf("Render(String) = %q, want %q", got, `"hi"`)
	}
	if got := Render(ObjectPath("/org/example")); got != `"/org/example"` {
		t.Errorf("Render(ObjectPath) = %q, want %q", got, `"/org/example"`)
	}
}

func TestRender_Array(t *testing.T) {
	arr := Array{Items: []Value{Int32(1), Int32(2), Int32(3)}}
	if got, want := Render(arr), "[1, 2, 3]"; got != want {
		t.Errorf("Render(Array) = %q, want %q", got, want)
	}
}

func TestRender_Struct(t *testing.T) {
	s := Struct{Fields: []Value{String("name"), Int32(7)}}
	if got, want := Render(s), `("name", 7)`; got != want {
		t.Errorf("Render(Struct) = %q, want %q", got, want)
	}
}

func TestRender_DictEntry(t *testing.T) {
	e := DictEntry{Key: String("key"), Val: Int32(1)}
	if got, want := Render(e), `"key": 1`; got != want {
		t.Errorf("Render(DictEntry) = %q, want %q", got, want)
	}
}

func TestRender_Variant(t *testing.T) {
	v := Variant{Inner: String("hi")}
	if got, want := Render(v), `s{"hi"}`; got != want {
		t.Errorf("Render(Variant) = %q, want %q", got, want)
	}
}

func TestRender_NestedArrayOfStructs(t *testing.T) {
	arr := Array{Items: []Value{
		Struct{Fields: []Value{String("a"), Int32(1)}},
		Struct{Fields: []Value{String("b"), Int32(2)}},
	}}
	want := `[("a", 1), ("b", 2)]`
	if got := Render(arr); got != want {
		t.Errorf("Render(nested) = %q, want %q", got, want)
	}
}
