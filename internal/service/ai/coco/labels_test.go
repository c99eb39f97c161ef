package coco

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLabels_BuiltIn(t *testing.T) {
	table := Labels()

	if table[77] != "cell phone" || table[85] != "clock" || table[1] != "person" {
		t.Errorf("Unexpected built-in labels: 77=%q 85=%q 1=%q", table[77], table[85], table[1])
	}

	table[77] = "changed"
	if Labels()[77] != "cell phone" {
		t.Error("Labels should return a copy")
	}
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.txt")
	content := "# custom model\nbackground\ncell phone\n\n90 toothbrush\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write labels: %v", err)
	}

	table, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if table[1] != "background" || table[2] != "cell phone" || table[90] != "toothbrush" {
		t.Errorf("Unexpected table %v", table)
	}
}

func TestLoadLabels_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadLabels(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.txt")
	os.WriteFile(empty, []byte("# nothing\n\n"), 0644)
	if _, err := LoadLabels(empty); err == nil {
		t.Error("Expected error for empty file")
	}
}

func TestName(t *testing.T) {
	table := map[int]string{3: "car"}
	if Name(table, 3) != "car" {
		t.Errorf("Expected car, got %q", Name(table, 3))
	}
	if Name(table, 4) != "unknown4" {
		t.Errorf("Expected unknown4, got %q", Name(table, 4))
	}
}
