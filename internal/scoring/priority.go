package scoring

import "prakriti-service/internal/model"

// DefaultComplaintReward is awarded on resolution when a complaint carries
// no explicit reward.
const DefaultComplaintReward = 50

var severityWeights = map[model.Severity]int{
	model.SeverityLow:      1,
	model.SeverityMedium:   2,
	model.SeverityHigh:     3,
	model.SeverityCritical: 4,
}

var categoryWeights = map[model.ComplaintCategory]int{
	model.CategoryIllegalDumping:  2,
	model.CategoryWaterPollution:  3,
	model.CategoryAirPollution:    3,
	model.CategoryNoisePollution:  1,
	model.CategoryDeforestation:   3,
	model.CategoryWasteManagement: 2,
	model.CategoryOther:           1,
}

func SeverityWeight(s model.Severity) int {
	return severityWeights[s]
}

func CategoryWeight(c model.ComplaintCategory) int {
	return categoryWeights[c]
}

// Priority derives the urgency band from severity and category. Unknown
// values weigh 0.
func Priority(severity model.Severity, category model.ComplaintCategory) model.Priority {
	weight := SeverityWeight(severity) + CategoryWeight(category)

	switch {
	case weight >= 6:
		return model.PriorityUrgent
	case weight >= 4:
		return model.PriorityHigh
	case weight >= 2:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// ComplaintReward returns the points credited when a complaint resolves.
func ComplaintReward(points int) int {
	if points > 0 {
		return points
	}
	return DefaultComplaintReward
}

func ValidSeverity(s model.Severity) bool {
	_, ok := severityWeights[s]
	return ok
}

func ValidCategory(c model.ComplaintCategory) bool {
	_, ok := categoryWeights[c]
	return ok
}
