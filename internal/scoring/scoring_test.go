package scoring

import (
	"testing"
	"time"

	"prakriti-service/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestPriority(t *testing.T) {
	tests := []struct {
		name     string
		severity model.Severity
		category model.ComplaintCategory
		want     model.Priority
	}{
		{"critical water pollution is urgent", model.SeverityCritical, model.CategoryWaterPollution, model.PriorityUrgent},
		{"low noise sits on the medium boundary", model.SeverityLow, model.CategoryNoisePollution, model.PriorityMedium},
		{"weight 6 is urgent", model.SeverityHigh, model.CategoryDeforestation, model.PriorityUrgent},
		{"weight 5 is high", model.SeverityHigh, model.CategoryIllegalDumping, model.PriorityHigh},
		{"weight 4 is high", model.SeverityMedium, model.CategoryWasteManagement, model.PriorityHigh},
		{"weight 3 is medium", model.SeverityMedium, model.CategoryOther, model.PriorityMedium},
		{"unknown category only counts severity", model.SeverityLow, model.ComplaintCategory("graffiti"), model.PriorityLow},
		{"unknown everything is low", model.Severity(""), model.ComplaintCategory(""), model.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Priority(tt.severity, tt.category))
		})
	}
}

func TestPriorityCoversEveryPair(t *testing.T) {
	assert.False(t, ValidSeverity("extreme"))
	assert.False(t, ValidCategory("litter"))

	for _, s := range model.Severities {
		assert.True(t, ValidSeverity(s), string(s))
		for _, c := range model.ComplaintCategories {
			assert.True(t, ValidCategory(c), string(c))
			weight := SeverityWeight(s) + CategoryWeight(c)
			got := Priority(s, c)

			var want model.Priority
			switch {
			case weight >= 6:
				want = model.PriorityUrgent
			case weight >= 4:
				want = model.PriorityHigh
			case weight >= 2:
				want = model.PriorityMedium
			default:
				want = model.PriorityLow
			}

			assert.Equal(t, want, got, "%s/%s", s, c)
			assert.Equal(t, got, Priority(s, c), "must be deterministic")
		}
	}
}

func TestComplaintReward(t *testing.T) {
	assert.Equal(t, 50, ComplaintReward(0))
	assert.Equal(t, 50, ComplaintReward(-3))
	assert.Equal(t, 120, ComplaintReward(120))
}

func TestComputeStatistics(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		verified int
		wantRate float64
	}{
		{"no submissions", 0, 0, 0},
		{"none verified", 4, 0, 0},
		{"half verified", 4, 2, 50},
		{"all verified", 3, 3, 100},
		{"one of three", 3, 1, 100.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := ComputeStatistics(tt.total, tt.verified)
			assert.Equal(t, tt.total, stats.TotalSubmissions)
			assert.Equal(t, tt.verified, stats.VerifiedSubmissions)
			assert.InDelta(t, tt.wantRate, stats.CompletionRate, 1e-9)
		})
	}
}

func TestStatisticsOf(t *testing.T) {
	subs := []model.Submission{
		{Status: model.SubmissionVerified},
		{Status: model.SubmissionPending},
		{Status: model.SubmissionRejected},
		{Status: model.SubmissionVerified},
	}

	stats := StatisticsOf(subs)
	assert.Equal(t, 4, stats.TotalSubmissions)
	assert.Equal(t, 2, stats.VerifiedSubmissions)
	assert.Equal(t, 50.0, stats.CompletionRate)
	assert.Equal(t, model.Statistics{}, StatisticsOf(nil))
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		experience int
		want       int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{12000, 10},
		{1000000, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.experience), "experience %d", tt.experience)
	}

	assert.Equal(t, 100, NextLevelAt(1))
	assert.Equal(t, -1, NextLevelAt(MaxLevel))
}

func TestAdvanceStreak(t *testing.T) {
	day := func(d, h int) time.Time {
		return time.Date(2024, time.March, d, h, 0, 0, 0, time.UTC)
	}
	at := func(ts time.Time) *time.Time { return &ts }

	t.Run("first activity starts a streak", func(t *testing.T) {
		s := AdvanceStreak(model.Streak{}, day(1, 9))
		assert.Equal(t, 1, s.Current)
		assert.Equal(t, 1, s.Longest)
		assert.Equal(t, day(1, 9), *s.LastActivity)
	})

	t.Run("same day does not advance", func(t *testing.T) {
		s := AdvanceStreak(model.Streak{Current: 2, Longest: 5, LastActivity: at(day(3, 8))}, day(3, 22))
		assert.Equal(t, 2, s.Current)
		assert.Equal(t, 5, s.Longest)
	})

	t.Run("next day advances and raises longest", func(t *testing.T) {
		s := AdvanceStreak(model.Streak{Current: 5, Longest: 5, LastActivity: at(day(3, 23))}, day(4, 1))
		assert.Equal(t, 6, s.Current)
		assert.Equal(t, 6, s.Longest)
	})

	t.Run("gap resets current but keeps longest", func(t *testing.T) {
		s := AdvanceStreak(model.Streak{Current: 4, Longest: 9, LastActivity: at(day(3, 12))}, day(6, 12))
		assert.Equal(t, 1, s.Current)
		assert.Equal(t, 9, s.Longest)
	})
}
