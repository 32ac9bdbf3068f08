package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/agora/internal/analytics"
	"github.com/nhle/agora/internal/model"
)

func date(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 10, 0, 0, 0, time.UTC)
}

func TestCompute_Pages(t *testing.T) {
	goal := model.ReadingGoal{Target: 300, Unit: analytics.UnitPages, Start: date(3, 1), End: date(3, 30)}
	logs := []model.ReadingLog{
		{Date: date(2, 28), Pages: 500},
		{Date: date(3, 1), Pages: 40},
		{Date: date(3, 8), Pages: 30},
		{Date: date(3, 9), Pages: 20},
		{Date: date(3, 10), Pages: 10},
	}

	p := analytics.Compute(goal, logs, date(3, 10))

	assert.Equal(t, 100, p.Done)
	assert.Equal(t, 200, p.Remaining)
	assert.Equal(t, "33.3", p.Percent.String())
	assert.Equal(t, 3, p.Streak)
	assert.Equal(t, 21, p.DaysLeft)
	assert.True(t, p.OnTrack)
}

func TestCompute_BooksBehindSchedule(t *testing.T) {
	goal := model.ReadingGoal{Target: 4, Unit: "Books", Start: date(1, 1), End: date(4, 30)}
	logs := []model.ReadingLog{
		{Date: date(1, 20), Pages: 80, Finished: true},
		{Date: date(3, 30), Pages: 10},
	}

	p := analytics.Compute(goal, logs, date(4, 1))

	assert.Equal(t, 1, p.Done)
	assert.Equal(t, "25", p.Percent.String())
	assert.Equal(t, 0, p.Streak)
	assert.False(t, p.OnTrack)
}

func TestCompute_StreakEndingYesterday(t *testing.T) {
	logs := []model.ReadingLog{
		{Date: date(6, 3), Pages: 5},
		{Date: date(6, 4), Pages: 5},
	}
	p := analytics.Compute(model.ReadingGoal{}, logs, date(6, 5))
	assert.Equal(t, 2, p.Streak)
}

func TestCompute_CapsAtHundredPercent(t *testing.T) {
	goal := model.ReadingGoal{Target: 10, Unit: analytics.UnitPages, Start: date(5, 1), End: date(5, 2)}
	p := analytics.Compute(goal, []model.ReadingLog{{Date: date(5, 1), Pages: 25}}, date(5, 3))

	assert.Equal(t, "100", p.Percent.String())
	assert.Equal(t, 0, p.Remaining)
	assert.Equal(t, 0, p.DaysLeft)
	assert.True(t, p.OnTrack)
}
