package scoring

import "prakriti-service/internal/model"

// ComputeStatistics is a full recompute of a task's submission rollup.
func ComputeStatistics(total, verified int) model.Statistics {
	stats := model.Statistics{
		TotalSubmissions:    total,
		VerifiedSubmissions: verified,
	}
	if total > 0 {
		stats.CompletionRate = float64(verified) / float64(total) * 100
	}
	return stats
}

// StatisticsOf recomputes the rollup from loaded submissions.
func StatisticsOf(submissions []model.Submission) model.Statistics {
	verified := 0
	for _, s := range submissions {
		if s.Status == model.SubmissionVerified {
			verified++
		}
	}
	return ComputeStatistics(len(submissions), verified)
}
