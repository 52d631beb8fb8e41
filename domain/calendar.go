package domain

import (
	"math"
	"slices"
	"time"
)

// DefaultOverloadThreshold is the task count above which a month is flagged as overloaded.
const DefaultOverloadThreshold = 4

// MonthGroup buckets the tasks due in one calendar month.
type MonthGroup struct {
	Month           time.Month `json:"month"`
	Name            string     `json:"name"`
	Year            int        `json:"year"`
	Tasks           []Task     `json:"tasks"`
	Overloaded      bool       `json:"overloaded"`
	TotalComplexity int        `json:"total_complexity"`
	AvgComplexity   float64    `json:"avg_complexity"`
}

// GroupByMonth returns twelve buckets for year. Tasks without a due date or due
// in another year are skipped.
func GroupByMonth(tasks []Task, year int, overloadThreshold int) []MonthGroup {
	if overloadThreshold <= 0 {
		overloadThreshold = DefaultOverloadThreshold
	}
	groups := make([]MonthGroup, 12)
	for i := range groups {
		m := time.Month(i + 1)
		groups[i] = MonthGroup{Month: m, Name: m.String(), Year: year, Tasks: []Task{}}
	}
	for _, t := range tasks {
		if t.DueDate == nil || t.DueDate.Year() != year {
			continue
		}
		g := &groups[t.DueDate.Month()-1]
		g.Tasks = append(g.Tasks, t)
		g.TotalComplexity += int(t.Complexity)
	}
	for i := range groups {
		g := &groups[i]
		g.Overloaded = len(g.Tasks) > overloadThreshold
		if n := len(g.Tasks); n > 0 {
			g.AvgComplexity = round1(float64(g.TotalComplexity) / float64(n))
		}
	}
	return groups
}

// SortMode selects the ordering used by SortTasks.
type SortMode string

const (
	SortByDate       SortMode = "date"
	SortByPriority   SortMode = "priority"
	SortByComplexity SortMode = "complexity"
)

// SortTasks returns a sorted copy. date: earliest due first, undated last;
// priority: high to low; complexity: highest score first.
func SortTasks(tasks []Task, mode SortMode) []Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, func(a, b Task) int {
		switch mode {
		case SortByPriority:
			return a.Priority.Rank() - b.Priority.Rank()
		case SortByComplexity:
			return int(b.Complexity) - int(a.Complexity)
		default:
			return compareDue(a.DueDate, b.DueDate)
		}
	})
	return out
}

func compareDue(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
