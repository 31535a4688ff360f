package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/ironlog/ironlog/internal/schema"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate accepts YYYY-MM-DD or natural language ("yesterday",
// "last monday") relative to now. Empty means today.
func parseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return now.Format(schema.DateLayout), nil
	}
	if t, err := time.Parse(schema.DateLayout, s); err == nil {
		return t.Format(schema.DateLayout), nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("could not understand date %q", s)
	}
	return r.Time.Format(schema.DateLayout), nil
}

// setSpec is one --set value: NAME:WEIGHTxREPS[@RPE].
type setSpec struct {
	Name     string
	WeightKg float64
	Reps     int
	RPE      *float64
}

func parseSetSpec(s string) (setSpec, error) {
	var spec setSpec

	name, load, ok := strings.Cut(s, ":")
	if !ok {
		return spec, fmt.Errorf("invalid set %q: expected NAME:WEIGHTxREPS[@RPE]", s)
	}
	spec.Name = strings.TrimSpace(name)
	if spec.Name == "" {
		return spec, fmt.Errorf("invalid set %q: exercise name is required", s)
	}

	load, rpe, hasRPE := strings.Cut(strings.TrimSpace(load), "@")
	weight, reps, ok := strings.Cut(strings.ToLower(load), "x")
	if !ok {
		return spec, fmt.Errorf("invalid set %q: expected WEIGHTxREPS", s)
	}

	var err error
	if spec.WeightKg, err = strconv.ParseFloat(strings.TrimSpace(weight), 64); err != nil {
		return spec, fmt.Errorf("invalid weight in %q: %w", s, err)
	}
	if spec.Reps, err = strconv.Atoi(strings.TrimSpace(reps)); err != nil {
		return spec, fmt.Errorf("invalid reps in %q: %w", s, err)
	}
	if hasRPE {
		v, err := strconv.ParseFloat(strings.TrimSpace(rpe), 64)
		if err != nil {
			return spec, fmt.Errorf("invalid RPE in %q: %w", s, err)
		}
		spec.RPE = &v
	}
	return spec, nil
}

// buildSets numbers exercises by first appearance and sets within each
// exercise in order.
func buildSets(specs []setSpec) []*schema.ExerciseSet {
	exerciseOrder := make(map[string]int)
	setOrder := make(map[string]int)

	sets := make([]*schema.ExerciseSet, 0, len(specs))
	for _, spec := range specs {
		if _, ok := exerciseOrder[spec.Name]; !ok {
			exerciseOrder[spec.Name] = len(exerciseOrder) + 1
		}
		setOrder[spec.Name]++
		sets = append(sets, &schema.ExerciseSet{
			ExerciseName:  spec.Name,
			ExerciseOrder: exerciseOrder[spec.Name],
			SetOrder:      setOrder[spec.Name],
			WeightKg:      spec.WeightKg,
			Reps:          spec.Reps,
			RPE:           spec.RPE,
		})
	}
	return sets
}
