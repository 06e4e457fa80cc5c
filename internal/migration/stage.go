package migration

import "fmt"

// Stage is a table's position in the isolation rollout.
type Stage string

const (
	StageUnscoped    Stage = "UNSCOPED"
	StageColumnAdded Stage = "COLUMN_ADDED"
	StageBackfilled  Stage = "BACKFILLED"
	StageConstrained Stage = "CONSTRAINED"
	StageEnforced    Stage = "ENFORCED"
)

var stageOrder = []Stage{StageUnscoped, StageColumnAdded, StageBackfilled, StageConstrained, StageEnforced}

// ParseStage converts a stored stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range stageOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown migration stage %q", s)
}

// Ordinal is the stage's index, 0 for UNSCOPED.
func (s Stage) Ordinal() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is o or later.
func (s Stage) AtLeast(o Stage) bool {
	return s.Ordinal() >= o.Ordinal()
}

// Next returns the following stage; ENFORCED is terminal.
func (s Stage) Next() Stage {
	i := s.Ordinal()
	if i < 0 || i == len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Schema-level work ends at CONSTRAINED; ENFORCED is declared by the services.
func (s Stage) schemaComplete() bool {
	return s.AtLeast(StageConstrained)
}
