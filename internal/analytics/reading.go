// Package analytics aggregates reading-goal progress from the logs the
// backend returns with the member dashboard.
package analytics

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/agora/internal/model"
)

// Goal units.
const (
	UnitPages = "pages"
	UnitBooks = "books"
)

var hundred = decimal.NewFromInt(100)

// Progress summarizes a reading goal.
type Progress struct {
	Goal      model.ReadingGoal
	Done      int
	Remaining int

	// Percent is Done/Target in percent, rounded to one decimal and capped
	// at 100.
	Percent decimal.Decimal

	// Streak counts consecutive days with reading, ending today or
	// yesterday.
	Streak int

	DaysLeft int
	OnTrack  bool
}

// Compute aggregates logs against goal as of now. Logs outside the goal
// window are ignored.
func Compute(goal model.ReadingGoal, logs []model.ReadingLog, now time.Time) Progress {
	p := Progress{Goal: goal}

	start, end := day(goal.Start), day(goal.End)
	today := day(now)

	for _, l := range logs {
		d := day(l.Date)
		if d.Before(start) || (!end.IsZero() && d.After(end)) {
			continue
		}
		p.Done += amount(goal.Unit, l)
	}

	if goal.Target > 0 {
		p.Remaining = max(goal.Target-p.Done, 0)
		pct := decimal.NewFromInt(int64(p.Done)).
			Div(decimal.NewFromInt(int64(goal.Target))).
			Mul(hundred).
			Round(1)
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		p.Percent = pct
	}

	if !end.IsZero() && !today.After(end) {
		p.DaysLeft = int(end.Sub(today).Hours()/24) + 1
	}

	p.OnTrack = onTrack(goal, p.Done, start, end, today)
	p.Streak = streak(logs, today)
	return p
}

func amount(unit string, l model.ReadingLog) int {
	if strings.EqualFold(unit, UnitBooks) {
		if l.Finished {
			return 1
		}
		return 0
	}
	return l.Pages
}

// onTrack compares progress with a linear schedule over the goal window.
func onTrack(goal model.ReadingGoal, done int, start, end, today time.Time) bool {
	if goal.Target <= 0 {
		return true
	}
	if done >= goal.Target {
		return true
	}
	if end.IsZero() || !end.After(start) || today.Before(start) {
		return true
	}
	if today.After(end) {
		return false
	}

	total := decimal.NewFromFloat(end.Sub(start).Hours()/24 + 1)
	elapsed := decimal.NewFromFloat(today.Sub(start).Hours()/24 + 1)
	expected := decimal.NewFromInt(int64(goal.Target)).Mul(elapsed).Div(total)

	return decimal.NewFromInt(int64(done)).GreaterThanOrEqual(expected.Floor())
}

func streak(logs []model.ReadingLog, today time.Time) int {
	active := make(map[time.Time]bool)
	for _, l := range logs {
		if l.Pages > 0 || l.Finished {
			active[day(l.Date)] = true
		}
	}
	if len(active) == 0 {
		return 0
	}

	cursor := today
	if !active[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
	}

	n := 0
	for active[cursor] {
		n++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return n
}

// day truncates t to midnight UTC.
func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
