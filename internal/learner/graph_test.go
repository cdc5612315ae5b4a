package learner

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/abhisek/tutord/internal/errs"
)

func TestNormalizeGraph(t *testing.T) {
	g, err := NormalizeGraph(map[string][]string{
		"Linear Equations": {"variables", "Variables", "order-of-operations"},
		"linear_equations": {"inverse operations"},
		"Variables":        nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Graph{
		"linear_equations": {"variables", "order_of_operations", "inverse_operations"},
		"variables":        {},
	}
	if !reflect.DeepEqual(g, want) {
		t.Errorf("NormalizeGraph = %v, want %v", g, want)
	}
}

func TestNormalizeGraph_SelfReference(t *testing.T) {
	_, err := NormalizeGraph(map[string][]string{"Fractions": {"fractions"}})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("error = %v, want invalid input", err)
	}
}

func TestNormalizeGraph_EmptyName(t *testing.T) {
	_, err := NormalizeGraph(map[string][]string{"fractions": {" "}})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("error = %v, want invalid input", err)
	}
}

func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name    string
		g       Graph
		wantErr string
	}{
		{"empty", Graph{}, ""},
		{"chain", Graph{"c": {"b"}, "b": {"a"}}, ""},
		{"diamond", Graph{"d": {"b", "c"}, "b": {"a"}, "c": {"a"}}, ""},
		{"two cycle", Graph{"a": {"b"}, "b": {"a"}}, "a, b"},
		{"cycle behind root", Graph{"x": {"y"}, "y": {"z"}, "z": {"x"}, "w": {}}, "x, y, z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.g.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, errs.ErrInvalidInput) {
				t.Fatalf("Validate() = %v, want invalid input", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestMerge_Deterministic(t *testing.T) {
	graphs := map[string]Graph{
		"geometry": {"area": {"multiplication"}},
		"algebra":  {"area": {"variables", "multiplication"}, "variables": {}},
	}
	want := Graph{
		"area":      {"variables", "multiplication"},
		"variables": {},
	}
	for i := 0; i < 20; i++ {
		if got := Merge(graphs); !reflect.DeepEqual(got, want) {
			t.Fatalf("Merge = %v, want %v", got, want)
		}
	}
}

func TestMerge_CrossGraphCycle(t *testing.T) {
	merged := Merge(map[string]Graph{
		"one": {"a": {"b"}},
		"two": {"b": {"a"}},
	})
	if err := merged.Validate(); err == nil {
		t.Error("Validate() = nil for a cycle spanning two graphs")
	}
}

func TestGraphLayers(t *testing.T) {
	g := Graph{
		"fractions":      {"division", "multiplication"},
		"division":       {"multiplication", "subtraction"},
		"multiplication": {"addition"},
		"subtraction":    {"addition"},
	}
	got := g.Layers("fractions", g["fractions"])
	want := [][]string{
		{"division", "multiplication"},
		{"subtraction", "addition"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Layers = %v, want %v", got, want)
	}

	if got := g.Layers("addition", g["addition"]); len(got) != 0 {
		t.Errorf("Layers(root) = %v, want none", got)
	}
}

func TestGraphSinks(t *testing.T) {
	g := Graph{"b": {"a"}, "c": {"a"}, "a": {}}
	if got, want := g.Sinks(), []string{"b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Sinks = %v, want %v", got, want)
	}
}
