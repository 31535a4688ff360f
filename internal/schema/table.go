package schema

import "fmt"

// Table names a syncable table. The string value is the wire name used by
// the remote authority.
type Table string

const (
	TableSessions        Table = "sessions"
	TableExerciseSets    Table = "exercise_sets"
	TableReadinessLogs   Table = "readiness_logs"
	TableWeightLogs      Table = "weight_logs"
	TableRecommendations Table = "recommendations"
	TableAppSettings     Table = "app_settings"
)

// AllTables lists every syncable table in snapshot/merge order. Sessions
// precede their exercise sets.
var AllTables = []Table{
	TableSessions,
	TableExerciseSets,
	TableReadinessLogs,
	TableWeightLogs,
	TableRecommendations,
	TableAppSettings,
}

// CamelName returns the camelCase alias some authorities use for the table.
func (t Table) CamelName() string {
	switch t {
	case TableExerciseSets:
		return "exerciseSets"
	case TableReadinessLogs:
		return "readinessLogs"
	case TableWeightLogs:
		return "weightLogs"
	case TableAppSettings:
		return "appSettings"
	default:
		return string(t)
	}
}

// ParseTable resolves a wire name (snake or camel case) to a Table.
func ParseTable(name string) (Table, error) {
	for _, t := range AllTables {
		if name == string(t) || name == t.CamelName() {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown table %q", name)
}
