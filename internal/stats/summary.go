package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"particles/internal/model"
)

// RunSummary aggregates a run's generation records.
type RunSummary struct {
	RunID            string  `json:"run_id"`
	Generations      int     `json:"generations"`
	InitialBest      float64 `json:"initial_best"`
	FinalBest        float64 `json:"final_best"`
	BestMean         float64 `json:"best_mean"`
	BestStd          float64 `json:"best_std"`
	BestMax          float64 `json:"best_max"`
	BestMin          float64 `json:"best_min"`
	Improvement      float64 `json:"improvement"`
	TotalGoalReached int     `json:"total_goal_reached"`
	MeanSuccessRate  float64 `json:"mean_success_rate"`
	// FirstGoalGeneration is the first generation with any agent at the goal,
	// or 0 when none got there.
	FirstGoalGeneration int `json:"first_goal_generation"`
}

func Summarize(runID string, records []model.GenerationRecord) RunSummary {
	summary := RunSummary{RunID: runID, Generations: len(records)}
	if len(records) == 0 {
		return summary
	}

	best := make([]float64, len(records))
	success := make([]float64, len(records))
	for i, r := range records {
		best[i] = r.BestFitness
		success[i] = r.SuccessRate()
		summary.TotalGoalReached += r.GoalReachedCount
		if summary.FirstGoalGeneration == 0 && r.GoalReachedCount > 0 {
			summary.FirstGoalGeneration = r.Index
		}
	}

	summary.InitialBest = best[0]
	summary.FinalBest = best[len(best)-1]
	summary.BestMean, summary.BestStd = stat.MeanStdDev(best, nil)
	if len(best) < 2 {
		summary.BestStd = 0
	}
	summary.BestMax = floats.Max(best)
	summary.BestMin = floats.Min(best)
	summary.Improvement = summary.FinalBest - summary.InitialBest
	summary.MeanSuccessRate = stat.Mean(success, nil)
	return summary
}
