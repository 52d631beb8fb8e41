package domain

// ComplexityDistribution counts tasks per complexity band.
type ComplexityDistribution struct {
	Simple      int `json:"simple"`
	Moderate    int `json:"moderate"`
	Complex     int `json:"complex"`
	VeryComplex int `json:"very_complex"`
}

// Stats summarises an owner's workload.
type Stats struct {
	Total              int                    `json:"total"`
	Blocked            int                    `json:"blocked"`
	TotalComplexity    int                    `json:"total_complexity"`
	AverageComplexity  float64                `json:"average_complexity"`
	Distribution       ComplexityDistribution `json:"distribution"`
	ComplexityByStatus map[Status]int         `json:"complexity_by_status"`
	CountByStatus      map[Status]int         `json:"count_by_status"`
}

// ComputeStats derives workload statistics. The distribution uses the finer
// four-band split (≤2, ≤4, ≤6, above) rather than the three-level label.
func ComputeStats(tasks []Task) Stats {
	idx := IndexTasks(tasks)
	s := Stats{
		Total:              len(tasks),
		ComplexityByStatus: map[Status]int{},
		CountByStatus:      map[Status]int{},
	}
	for i := range tasks {
		t := &tasks[i]
		c := int(t.Complexity)
		s.TotalComplexity += c
		s.ComplexityByStatus[t.Status] += c
		s.CountByStatus[t.Status]++
		switch {
		case c <= 2:
			s.Distribution.Simple++
		case c <= 4:
			s.Distribution.Moderate++
		case c <= 6:
			s.Distribution.Complex++
		default:
			s.Distribution.VeryComplex++
		}
		if idx.IsBlocked(t) {
			s.Blocked++
		}
	}
	if s.Total > 0 {
		s.AverageComplexity = round1(float64(s.TotalComplexity) / float64(s.Total))
	}
	return s
}
