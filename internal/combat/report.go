package combat

import (
	"fmt"
	"sort"
	"strings"
)

// Report aggregates finished battles into after-action numbers.
type Report struct {
	Battles   int `yaml:"battles"`
	Wins      int `yaml:"wins"`
	Losses    int `yaml:"losses"`
	Draws     int `yaml:"draws"`
	Unsettled int `yaml:"unsettled"`

	Resolved    int `yaml:"resolved"`
	Stalemates  int `yaml:"stalemates"`
	MasterClock int `yaml:"masterClock"`

	AvgTicks          float64 `yaml:"avgTicks"`
	AvgLeftCap        float64 `yaml:"avgLeftCap"`
	AvgRightCap       float64 `yaml:"avgRightCap"`
	AvgLeftCasualty   float64 `yaml:"avgLeftCasualtyRate"`
	AvgRightCasualty  float64 `yaml:"avgRightCasualtyRate"`
	TotalProbesLost   float64 `yaml:"probesLost"`
	TotalDriftersLost float64 `yaml:"driftersKilled"`
	NetHonor          int64   `yaml:"netHonor"`

	Descriptions map[string]int `yaml:"descriptions"`
}

// BuildReport summarises results.
func BuildReport(results []BattleResult) Report {
	r := Report{Descriptions: map[string]int{}}
	for _, br := range results {
		r.Battles++
		switch br.Outcome {
		case OutcomeProbeVictory:
			r.Wins++
		case OutcomeDrifterVictory:
			r.Losses++
		case OutcomeDraw:
			r.Draws++
		default:
			r.Unsettled++
		}
		switch br.Reason {
		case EndResolved:
			r.Resolved++
		case EndStalemate:
			r.Stalemates++
		case EndMasterClock:
			r.MasterClock++
		}
		r.AvgTicks += float64(br.Ticks)
		r.AvgLeftCap += float64(br.LeftCap)
		r.AvgRightCap += float64(br.RightCap)
		r.AvgLeftCasualty += casualtyRate(br.LeftCap-br.LeftLost, br.LeftCap)
		r.AvgRightCasualty += casualtyRate(br.RightCap-br.RightLost, br.RightCap)
		r.TotalProbesLost += br.ProbesLost
		r.TotalDriftersLost += br.DriftersKilled
		r.NetHonor += br.HonorDelta
		r.Descriptions[br.Description]++
	}
	if r.Battles > 0 {
		n := float64(r.Battles)
		r.AvgTicks /= n
		r.AvgLeftCap /= n
		r.AvgRightCap /= n
		r.AvgLeftCasualty /= n
		r.AvgRightCasualty /= n
	}
	return r
}

// WinRate is the share of battles the probes won, 0 with no battles.
func (r Report) WinRate() float64 {
	if r.Battles == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Battles)
}

// String renders the report as the block printed by the batch tools and
// copied from the viewer.
func (r Report) String() string {
	var sb strings.Builder
	sb.WriteString("=== Battle Report ===\n")
	fmt.Fprintf(&sb, "battles=%d wins=%d losses=%d draws=%d unsettled=%d win_rate=%.0f%%\n",
		r.Battles, r.Wins, r.Losses, r.Draws, r.Unsettled, r.WinRate()*100)
	fmt.Fprintf(&sb, "end_reasons: resolved=%d stalemate=%d master_clock=%d\n",
		r.Resolved, r.Stalemates, r.MasterClock)
	fmt.Fprintf(&sb, "avg: ticks=%.1f left_cap=%.1f right_cap=%.1f left_casualty=%.2f right_casualty=%.2f\n",
		r.AvgTicks, r.AvgLeftCap, r.AvgRightCap, r.AvgLeftCasualty, r.AvgRightCasualty)
	fmt.Fprintf(&sb, "population: probes_lost=%.0f drifters_killed=%.0f net_honor=%+d\n",
		r.TotalProbesLost, r.TotalDriftersLost, r.NetHonor)

	keys := make([]string, 0, len(r.Descriptions))
	for k := range r.Descriptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-44s %d\n", k, r.Descriptions[k])
	}
	return sb.String()
}

// FormatResults renders one line per result, oldest first.
func FormatResults(results []BattleResult) string {
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
