package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunUUID(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"abc_original.png", "abc", true},
		{"abc_original.jpeg", "abc", true},
		{"abc_annotated.jpg", "abc", true},
		{"notes.txt", "", false},
		{"_original.png", "", false},
	}

	for _, tt := range tests {
		got, ok := runUUID(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("runUUID(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestReconcile(t *testing.T) {
	buffer, runs, dets, imagesDir := setupBuffer(t, 10)

	buffer.AddRun(bufferedRun("kept"))
	buffer.AddRun(bufferedRun("broken"))
	buffer.FlushRuns()

	orphan := filepath.Join(imagesDir, "stray_annotated.jpg")
	if err := os.WriteFile(orphan, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(imagesDir, "broken_annotated.jpg")); err != nil {
		t.Fatal(err)
	}

	report, err := Reconcile(imagesDir, runs, true)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(report.OrphanFiles) != 1 || report.OrphanFiles[0] != orphan {
		t.Errorf("Unexpected orphans: %v", report.OrphanFiles)
	}
	if len(report.BrokenRuns) != 1 || report.BrokenRuns[0].UUID != "broken" {
		t.Errorf("Unexpected broken runs: %+v", report.BrokenRuns)
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Error("Dry run must not remove files")
	}

	if _, err := Reconcile(imagesDir, runs, false); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("Orphan file should be removed")
	}
	if run, _ := runs.GetByUUID("broken"); run != nil {
		t.Error("Broken run should be deleted")
	}
	kept, _ := runs.GetByUUID("kept")
	if kept == nil {
		t.Fatal("Intact run should stay")
	}
	if left, _ := dets.GetByRunID(kept.ID); len(left) != 2 {
		t.Errorf("Intact run should keep its detections, got %d", len(left))
	}

	again, err := Reconcile(imagesDir, runs, true)
	if err != nil || len(again.OrphanFiles) != 0 || len(again.BrokenRuns) != 0 {
		t.Errorf("Second pass should be clean: %+v, %v", again, err)
	}
}
