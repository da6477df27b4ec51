package codec

import (
	"bytes"
	"testing"
)

func TestMarshal_MapKeyOrderIrrelevant(t *testing.T) {
	// Two maps assembled in different insertion orders must produce
	// identical canonical bytes.
	a := map[string]any{}
	a["alpha"] = "1"
	a["beta"] = "2"
	a["gamma"] = "3"

	b := map[string]any{}
	b["gamma"] = "3"
	b["alpha"] = "1"
	b["beta"] = "2"

	for i := 0; i < 20; i++ {
		ab, err := Marshal(a)
		if err != nil {
			t.Fatalf("Marshal a: %v", err)
		}
		bb, err := Marshal(b)
		if err != nil {
			t.Fatalf("Marshal b: %v", err)
		}
		if !bytes.Equal(ab, bb) {
			t.Fatalf("canonical encodings differ:\n%x\n%x", ab, bb)
		}
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]any{
		"outer": map[string]any{"x": int64(1), "y": "two"},
		"list":  []any{"a", int64(2)},
	}
	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(got, first) {
			t.Fatalf("encoding not deterministic")
		}
	}
}

func TestUnmarshal_GenericMapsAreStringKeyed(t *testing.T) {
	b, err := Marshal(map[string]any{"inner": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]any
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	inner, ok := out["inner"].(map[string]any)
	if !ok {
		t.Fatalf("inner: got %T, want map[string]any", out["inner"])
	}
	if inner["k"] != "v" {
		t.Fatalf("inner value lost: %v", inner)
	}
}

func TestRoundTrip_Struct(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int64  `json:"count"`
		Note  string `json:"note,omitempty"`
	}
	in := payload{Name: "x", Count: 7}
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out payload
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip: got %+v want %+v", out, in)
	}

	// The omitempty field must be absent from the generic shape.
	var generic map[string]any
	if err := Unmarshal(b, &generic); err != nil {
		t.Fatalf("Unmarshal generic: %v", err)
	}
	if _, present := generic["note"]; present {
		t.Fatalf("empty omitempty field serialized")
	}
}
