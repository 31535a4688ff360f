package main

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		in   string
		want string
	}{
		{"", "2024-03-06"},
		{"today", "2024-03-06"},
		{"2024-02-29", "2024-02-29"},
		{"yesterday", "2024-03-05"},
		{"tomorrow", "2024-03-07"},
	}
	for _, tt := range tests {
		got, err := parseDate(tt.in, now)
		if err != nil {
			t.Errorf("parseDate(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDate(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := parseDate("banana", now); err == nil {
		t.Error("expected error for unparseable date")
	}
}

func TestParseSetSpec(t *testing.T) {
	spec, err := parseSetSpec("Bench Press:80x8@8.5")
	if err != nil {
		t.Fatalf("parseSetSpec failed: %v", err)
	}
	if spec.Name != "Bench Press" || spec.WeightKg != 80 || spec.Reps != 8 {
		t.Errorf("unexpected spec %+v", spec)
	}
	if spec.RPE == nil || *spec.RPE != 8.5 {
		t.Errorf("expected RPE 8.5, got %v", spec.RPE)
	}

	spec, err = parseSetSpec("Squat: 100X5")
	if err != nil {
		t.Fatalf("parseSetSpec failed: %v", err)
	}
	if spec.RPE != nil || spec.Reps != 5 {
		t.Errorf("unexpected spec %+v", spec)
	}

	for _, bad := range []string{"Bench 80x8", ":80x8", "Bench:80", "Bench:ax8", "Bench:80x8@hard"} {
		if _, err := parseSetSpec(bad); err == nil {
			t.Errorf("parseSetSpec(%q) should fail", bad)
		}
	}
}

func TestBuildSets_Ordering(t *testing.T) {
	sets := buildSets([]setSpec{
		{Name: "Bench", WeightKg: 80, Reps: 8},
		{Name: "Row", WeightKg: 60, Reps: 10},
		{Name: "Bench", WeightKg: 80, Reps: 7},
	})
	if len(sets) != 3 {
		t.Fatalf("expected 3 sets, got %d", len(sets))
	}
	if sets[2].ExerciseOrder != 1 || sets[2].SetOrder != 2 {
		t.Errorf("second bench set: exercise %d set %d", sets[2].ExerciseOrder, sets[2].SetOrder)
	}
	if sets[1].ExerciseOrder != 2 || sets[1].SetOrder != 1 {
		t.Errorf("row set: exercise %d set %d", sets[1].ExerciseOrder, sets[1].SetOrder)
	}
}
