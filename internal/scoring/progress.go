package scoring

import (
	"time"

	"prakriti-service/internal/model"
)

const MaxLevel = 10

// levelThresholds[i] is the experience needed to reach level i+1.
var levelThresholds = []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 12000}

// LevelFor maps accumulated experience to a level in [1, MaxLevel].
func LevelFor(experience int) int {
	level := 1
	for i, threshold := range levelThresholds {
		if experience >= threshold {
			level = i + 1
		}
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return level
}

// NextLevelAt returns the experience needed for the next level, or -1 at the cap.
func NextLevelAt(level int) int {
	if level < 1 {
		return levelThresholds[1]
	}
	if level >= MaxLevel {
		return -1
	}
	return levelThresholds[level]
}

// AdvanceStreak records activity at now. Days are compared in UTC.
func AdvanceStreak(s model.Streak, now time.Time) model.Streak {
	today := truncateDay(now)

	switch {
	case s.LastActivity == nil:
		s.Current = 1
	default:
		last := truncateDay(*s.LastActivity)
		switch days := int(today.Sub(last).Hours() / 24); {
		case days <= 0:
			// already counted today
		case days == 1:
			s.Current++
		default:
			s.Current = 1
		}
	}

	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	at := now.UTC()
	s.LastActivity = &at
	return s
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
