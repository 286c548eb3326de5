package dbustype

import "testing"

func TestParseSignature_Basics(t *testing.T) {
	sig, err := ParseSignature("s")
	if err != nil {
		t.Fatalf("ParseSignature(s): %v", err)
	}
	if len(sig) != 1 || sig[0].Kind != KindString {
		t.Errorf("expected single string type, got %+v", sig)
	}
}

func TestParseSignature_MultipleTypes(t *testing.T) {
	sig, err := ParseSignature("ii(si)")
	if err != nil {
		t.Fatalf("ParseSignature: %v", err)
	}
	if sig.NumberOfCompleteTypes() != 3 {
		t.Errorf("expected 3 complete types, got %d", sig.NumberOfCompleteTypes())
	}
	if sig.String() != "ii(si)" {
		t.Errorf("expected round-tripped signature, got %q", sig.String())
	}
}

func TestParseSignature_ArrayOfDictEntry(t *testing.T) {
	sig, err := ParseSignature("a{sv}")
	if err != nil {
		t.Fatalf("ParseSignature(a{sv}): %v", err)
	}
	if sig[0].Kind != KindArray || sig[0].Elem.Kind != KindDictEntry {
		t.Fatalf("expected array of dict entries, got %+v", sig[0])
	}
	if sig[0].Elem.Key.Kind != KindString || sig[0].Elem.Val.Kind != KindVariant {
		t.Errorf("expected dict entry {sv}, got %+v", sig[0].Elem)
	}
}

func TestParseSignature_DictEntryOutsideArrayRejected(t *testing.T) {
	if _, err := ParseSignature("{sv}"); err == nil {
		t.Error("expected error for dict entry outside an array")
	}
}

func TestParseSignature_EmptyStructRejected(t *testing.T) {
	if _, err := ParseSignature("()"); err == nil {
		t.Error("expected error for empty struct")
	}
}

func TestParseSignature_UnbalancedBracketsRejected(t *testing.T) {
	if _, err := ParseSignature("(si"); err == nil {
		t.Error("expected error for unbalanced struct")
	}
	if _, err := ParseSignature("a{sv"); err == nil {
		t.Error("expected error for unbalanced dict entry")
	}
}

func TestParseSignature_UnknownTypeCodeRejected(t *testing.T) {
	if _, err := ParseSignature("z"); err == nil {
		t.Error("expected error for unknown type code")
	}
}

func TestParseSignature_NestingDepthEnforced(t *testing.T) {
	deep := ""
	for i := 0; i < 40; i++ {
		deep += "a"
	}
	deep += "y"
	if _, err := ParseSignature(deep); err == nil {
		t.Error("expected error for nesting depth beyond 32")
	}
}

func TestParseSignature_DictEntryKeyMustBeBasic(t *testing.T) {
	if _, err := ParseSignature("a{(i)v}"); err == nil {
		t.Error("expected error for non-basic dict entry key")
	}
}

func TestType_Align(t *testing.T) {
	cases := []struct {
		typ  *Type
		want int
	}{
		{Basic(KindByte), 1},
		{Basic(KindInt16), 2},
		{Basic(KindInt32), 4},
		{Basic(KindInt64), 8},
		{StructOf(Basic(KindByte)), 8},
		{ArrayOf(Basic(KindByte)), 4},
	}
	for _, c := range cases {
		if got := c.typ.Align(); got != c.want {
			t.Errorf("Align(%s) = %d, want %d", c.typ, got, c.want)
		}
	}
}

func TestType_Equal(t *testing.T) {
	a, _ := ParseSignature("a{sv}")
	b, _ := ParseSignature("a{sv}")
	c, _ := ParseSignature("a{si}")
	if !a[0].Equal(b[0]) {
		t.Error("expected structurally identical types to be Equal")
	}
	if a[0].Equal(c[0]) {
		t.Error("expected differing value types to not be Equal")
	}
}
