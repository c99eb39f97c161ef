package episode

import (
	"reflect"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]string
		wantErr bool
	}{
		{"valid", map[string]string{"cell phone": "1", "clock": "2"}, false},
		{"trims whitespace", map[string]string{" clock ": " 2 "}, false},
		{"empty", map[string]string{}, true},
		{"nil", nil, true},
		{"empty label", map[string]string{"": "1"}, true},
		{"empty id", map[string]string{"clock": " "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegistry(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r, err := NewRegistry(map[string]string{" clock ": "2", "cell phone": "1"})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if id, ok := r.Lookup("clock"); !ok || id != "2" {
		t.Errorf("Lookup(clock) = %q, %v", id, ok)
	}
	if _, ok := r.Lookup("person"); ok {
		t.Error("Unknown label should not be found")
	}
	if !reflect.DeepEqual(r.Labels(), []string{"cell phone", "clock"}) {
		t.Errorf("Unexpected labels %v", r.Labels())
	}
	if r.Len() != 2 {
		t.Errorf("Expected 2 classes, got %d", r.Len())
	}
}

func TestRegistry_IsACopy(t *testing.T) {
	source := map[string]string{"clock": "2"}
	r, err := NewRegistry(source)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	source["person"] = "3"
	if _, ok := r.Lookup("person"); ok {
		t.Error("Registry must not observe later changes to its source map")
	}
}
