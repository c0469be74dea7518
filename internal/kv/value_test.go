package kv

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestValueJSONShape(t *testing.T) {
	b, err := json.Marshal(Int(15))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(b), `{"type":"int","value":15}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}

	b, err = json.Marshal(StringSet(nil))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(b), `{"type":"string_set","value":[]}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}

func TestValueJSONRejectsUnknownType(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"type":"double","value":1.5}`), &v)
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "unknown value type") {
		t.Errorf("error = %v", err)
	}
}

func TestValueJSONRejectsMissingPayload(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"type":"boolean"}`), &v); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestStringSetDeduplicatesAndSorts(t *testing.T) {
	got := StringSet([]string{"b", "a", "b"})
	if diff := cmp.Diff([]string{"a", "b"}, got.Set); diff != "" {
		t.Errorf("set mismatch (-want +got):\n%s", diff)
	}
}

func TestValueYAMLMatchesJSON(t *testing.T) {
	in := map[string]Value{
		"flag":  Bool(true),
		"count": Int(-1),
		"when":  Long(1700000000000),
		"name":  String("hack"),
		"apps":  StringSet([]string{`{"type":"app"}`, "x"}),
	}
	out, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}

	var back map[string]Value
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("yaml.Unmarshal: %v\n%s", err, out)
	}
	for k, want := range in {
		if !back[k].Equal(want) {
			t.Errorf("%s = %v, want %v", k, back[k], want)
		}
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Int(1), Int(1), true},
		{Int(1), Long(1), false},
		{String("a"), String("b"), false},
		{StringSet([]string{"a", "b"}), StringSet([]string{"b", "a"}), true},
		{StringSet([]string{"a"}), StringSet([]string{"a", "b"}), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
