package results

import "sort"

// OffsetSummary averages the runs of one offset.
type OffsetSummary struct {
	OffsetDays     int      `json:"offset_days"`
	Runs           int      `json:"runs"`
	AgentLLMs      []string `json:"agent_llms"`
	NumSimulations int      `json:"num_simulations"`
	AvgReward      float64  `json:"avg_reward"`
	PassAt1        float64  `json:"pass_at_1"`
	SuccessRate    float64  `json:"success_rate"`
	AvgAgentCost   float64  `json:"avg_agent_cost"`

	// Baseline fields compare AvgReward with offset zero. They are set only
	// when a baseline exists and this is not it.
	HasBaseline   bool    `json:"has_baseline"`
	RewardDiff    float64 `json:"reward_diff,omitempty"`
	RewardDiffPct float64 `json:"reward_diff_pct,omitempty"`
}

// Summarize groups run metrics by offset, averaging across runs, and
// compares each offset's reward with the offset zero baseline.
func Summarize(metrics []RunMetrics) []OffsetSummary {
	groups := map[int][]RunMetrics{}
	for _, m := range metrics {
		groups[m.OffsetDays] = append(groups[m.OffsetDays], m)
	}
	offsets := make([]int, 0, len(groups))
	for d := range groups {
		offsets = append(offsets, d)
	}
	sort.Ints(offsets)

	out := make([]OffsetSummary, 0, len(offsets))
	for _, d := range offsets {
		runs := groups[d]
		s := OffsetSummary{OffsetDays: d, Runs: len(runs)}
		llms := map[string]bool{}
		for _, m := range runs {
			s.NumSimulations += m.NumSimulations
			s.AvgReward += m.AvgReward
			s.PassAt1 += m.PassAt1
			s.SuccessRate += m.SuccessRate
			s.AvgAgentCost += m.AvgAgentCost
			if !llms[m.AgentLLM] {
				llms[m.AgentLLM] = true
				s.AgentLLMs = append(s.AgentLLMs, m.AgentLLM)
			}
		}
		n := float64(len(runs))
		s.AvgReward /= n
		s.PassAt1 /= n
		s.SuccessRate /= n
		s.AvgAgentCost /= n
		sort.Strings(s.AgentLLMs)
		out = append(out, s)
	}

	var base *OffsetSummary
	for i := range out {
		if out[i].OffsetDays == 0 {
			base = &out[i]
		}
	}
	if base == nil {
		return out
	}
	for i := range out {
		if out[i].OffsetDays == 0 {
			continue
		}
		out[i].HasBaseline = true
		out[i].RewardDiff = out[i].AvgReward - base.AvgReward
		if base.AvgReward > 0 {
			out[i].RewardDiffPct = out[i].RewardDiff / base.AvgReward * 100
		}
	}
	return out
}
