// Package dispute is the chargeback lifecycle engine. It classifies platform
// records into a closed set of stages and hands out stage-bound handles that
// expose only the actions legal in that stage.
//
// Handles are transient. They wrap a record fetched for one decision and must
// be discarded afterward: the platform, the issuer and the network clock can
// all move a dispute without this process noticing. Always start from Load.
package dispute

import "fmt"

// Stage is the lifecycle stage a dispute record classifies into.
type Stage int

const (
	StageRetrieval Stage = iota + 1
	StageFirst
	StageRepresentment
	StagePreArbitration
	StageSecondChargeback
	StageArbitration
	StageWon
	StageLost
	StageClosed
)

var stageNames = map[Stage]string{
	StageRetrieval:        "retrieval",
	StageFirst:            "first",
	StageRepresentment:    "representment",
	StagePreArbitration:   "preArbitration",
	StageSecondChargeback: "secondChargeback",
	StageArbitration:      "arbitration",
	StageWon:              "won",
	StageLost:             "lost",
	StageClosed:           "closed",
}

// AllStages lists every stage in lifecycle order.
var AllStages = []Stage{
	StageRetrieval,
	StageFirst,
	StageRepresentment,
	StagePreArbitration,
	StageSecondChargeback,
	StageArbitration,
	StageWon,
	StageLost,
	StageClosed,
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

// IsTerminal reports whether the dispute is resolved.
func (s Stage) IsTerminal() bool {
	return s == StageWon || s == StageLost || s == StageClosed
}

// Actions returns the business actions a merchant may take in this stage.
func (s Stage) Actions() []Action {
	switch s {
	case StageFirst, StageSecondChargeback:
		return []Action{ActionRepresent, ActionAcceptLiability}
	case StagePreArbitration:
		return []Action{ActionRepresent, ActionAcceptLiability, ActionRequestArbitration}
	default:
		return nil
	}
}

// Allows reports whether a is legal in this stage.
func (s Stage) Allows(a Action) bool {
	for _, allowed := range s.Actions() {
		if allowed == a {
			return true
		}
	}
	return false
}

// ParseStage is the inverse of Stage.String.
func ParseStage(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// Action is a state-changing call a merchant can make on a dispute.
type Action string

const (
	ActionRepresent          Action = "represent"
	ActionAcceptLiability    Action = "accept_liability"
	ActionRequestArbitration Action = "request_arbitration"
)
