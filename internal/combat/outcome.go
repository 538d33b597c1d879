package combat

import "fmt"

type BattleOutcome int

const (
	OutcomeInconclusive BattleOutcome = iota
	OutcomeProbeVictory
	OutcomeDrifterVictory
	OutcomeDraw
)

func (o BattleOutcome) String() string {
	switch o {
	case OutcomeProbeVictory:
		return "probe_victory"
	case OutcomeDrifterVictory:
		return "drifter_victory"
	case OutcomeDraw:
		return "draw"
	case OutcomeInconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// EndReason says which end condition closed a battle.
type EndReason int

const (
	EndResolved    EndReason = iota // decisive result, linger elapsed
	EndStalemate                    // mopping-up clock ran out
	EndMasterClock                  // absolute time limit
)

func (r EndReason) String() string {
	switch r {
	case EndResolved:
		return "resolved"
	case EndStalemate:
		return "stalemate"
	case EndMasterClock:
		return "master_clock"
	default:
		return "unknown"
	}
}

// BattleOutcomeReason classifies how a battle went.
type BattleOutcomeReason struct {
	Outcome        BattleOutcome
	LeftSurvivors  int
	LeftTotal      int
	RightSurvivors int
	RightTotal     int
	Description    string
}

// DetermineBattleOutcome classifies a battle from survivors and caps. Timed
// out battles are judged on casualty rates.
func DetermineBattleOutcome(leftSurvivors, leftTotal, rightSurvivors, rightTotal int) BattleOutcomeReason {
	r := BattleOutcomeReason{
		LeftSurvivors:  leftSurvivors,
		LeftTotal:      leftTotal,
		RightSurvivors: rightSurvivors,
		RightTotal:     rightTotal,
	}

	// A probe wipe is a loss even if the drifters died in the same tick.
	if leftSurvivors == 0 {
		r.Outcome = OutcomeDrifterVictory
		r.Description = "decisive_drifter_victory_probes_eliminated"
		if rightSurvivors == 0 {
			r.Description = "mutual_annihilation_scored_as_loss"
		}
		return r
	}
	if rightSurvivors == 0 {
		r.Outcome = OutcomeProbeVictory
		r.Description = "decisive_probe_victory_drifters_eliminated"
		return r
	}

	leftCasualtyRate := casualtyRate(leftSurvivors, leftTotal)
	rightCasualtyRate := casualtyRate(rightSurvivors, rightTotal)
	diff := rightCasualtyRate - leftCasualtyRate

	switch {
	case diff > 0.30 && leftCasualtyRate < 0.50:
		r.Outcome = OutcomeProbeVictory
		r.Description = "marginal_probe_victory_casualty_advantage"
	case diff < -0.30 && rightCasualtyRate < 0.50:
		r.Outcome = OutcomeDrifterVictory
		r.Description = "marginal_drifter_victory_casualty_advantage"
	case diff >= -0.20 && diff <= 0.20 && (leftCasualtyRate > 0.30 || rightCasualtyRate > 0.30):
		r.Outcome = OutcomeDraw
		r.Description = "draw_similar_casualties"
	default:
		r.Outcome = OutcomeInconclusive
		r.Description = "inconclusive_insufficient_resolution"
	}
	return r
}

func casualtyRate(survivors, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(total-survivors) / float64(total)
}

// BattleResult is the record kept for a finished battle.
type BattleResult struct {
	Name           string
	Outcome        BattleOutcome
	Reason         EndReason
	Description    string
	Ticks          int
	LeftCap        int
	RightCap       int
	LeftLost       int
	RightLost      int
	ProbesLost     float64
	DriftersKilled float64
	HonorDelta     int64
}

func newBattleResult(b *Battle, reason EndReason, honorAfter int64) BattleResult {
	o := DetermineBattleOutcome(b.Left, b.LeftCap, b.Right, b.RightCap)
	return BattleResult{
		Name:           b.Name,
		Outcome:        o.Outcome,
		Reason:         reason,
		Description:    o.Description,
		Ticks:          b.MasterClock,
		LeftCap:        b.LeftCap,
		RightCap:       b.RightCap,
		LeftLost:       b.LeftLost,
		RightLost:      b.RightLost,
		ProbesLost:     b.ProbesLost,
		DriftersKilled: b.DriftersKilled,
		HonorDelta:     honorAfter - b.HonorBefore,
	}
}

// String formats the result as a single report line.
func (r BattleResult) String() string {
	return fmt.Sprintf("%-28s %-16s %-12s t=%-5d L %3d/%-3d R %3d/%-3d honor %+d",
		r.Name, r.Outcome, r.Reason, r.Ticks,
		r.LeftCap-r.LeftLost, r.LeftCap, r.RightCap-r.RightLost, r.RightCap, r.HonorDelta)
}
