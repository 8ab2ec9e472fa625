package dispute

import (
	"fmt"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// cycleStages maps every recognized cycle to its nominal stage.
// A cycle missing from this table is a classification error.
var cycleStages = map[domain.Cycle]Stage{
	domain.CycleRetrieval:     StageRetrieval,
	domain.CycleFirst:         StageFirst,
	domain.CycleRepresentment: StageRepresentment,

	domain.CyclePreArbitration:                 StagePreArbitration,
	domain.CycleIssuerDeclinedPreArbitration:   StagePreArbitration,
	domain.CycleResponseToIssuerPreArbitration: StagePreArbitration,
	domain.CycleMerchantDeclinedPreArbitration: StagePreArbitration,

	domain.CycleSecond: StageSecondChargeback,

	domain.CycleArbitration:   StageArbitration,
	domain.CyclePreCompliance: StageArbitration,
	domain.CycleCompliance:    StageArbitration,

	domain.CycleArbitrationWon:   StageWon,
	domain.CycleArbitrationLost:  StageLost,
	domain.CycleArbitrationSplit: StageClosed,
	domain.CycleReversal:         StageClosed,
}

// ClassificationError reports a record whose cycle or status is outside the
// recognized set. It is never turned into a default stage.
type ClassificationError struct {
	DisputeID string
	Field     string // "cycle" or "status"
	Cycle     domain.Cycle
	Status    domain.Status
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify dispute %s: unrecognized %s (cycle=%q, status=%q)",
		e.DisputeID, e.Field, e.Cycle, e.Status)
}

func (e *ClassificationError) Unwrap() error {
	return domain.ErrClassification
}

// Classify maps a record to exactly one stage.
//
// The cycle is inspected first and must be recognized. A terminal status
// (won, lost, closed) then overrides the cycle's nominal stage: a dispute won
// while nominally in the first cycle is Won, not First.
func Classify(rec domain.DisputeRecord) (Stage, error) {
	nominal, ok := cycleStages[rec.Cycle]
	if !ok {
		return 0, &ClassificationError{DisputeID: rec.ID, Field: "cycle", Cycle: rec.Cycle, Status: rec.Status}
	}

	switch rec.Status {
	case domain.StatusOpen:
		return nominal, nil
	case domain.StatusWon:
		return StageWon, nil
	case domain.StatusLost:
		return StageLost, nil
	case domain.StatusClosed:
		return StageClosed, nil
	default:
		return 0, &ClassificationError{DisputeID: rec.ID, Field: "status", Cycle: rec.Cycle, Status: rec.Status}
	}
}

// RecognizedCycles returns every cycle Classify accepts.
func RecognizedCycles() []domain.Cycle {
	out := make([]domain.Cycle, 0, len(cycleStages))
	for c := range cycleStages {
		out = append(out, c)
	}
	return out
}

// RecognizedStatuses returns every status Classify accepts.
func RecognizedStatuses() []domain.Status {
	return []domain.Status{domain.StatusOpen, domain.StatusClosed, domain.StatusWon, domain.StatusLost}
}
