package models

import "fmt"

// Counters are the aggregate numbers shown at the top of the board.
type Counters struct {
	Total     int `yaml:"total" json:"total"`
	Completed int `yaml:"completed" json:"completed"`
	Pending   int `yaml:"pending" json:"pending"`
	Errors    int `yaml:"errors" json:"errors"`
}

// Add returns c with every field of d added.
func (c Counters) Add(d Counters) Counters {
	return Counters{
		Total:     c.Total + d.Total,
		Completed: c.Completed + d.Completed,
		Pending:   c.Pending + d.Pending,
		Errors:    c.Errors + d.Errors,
	}
}

// Negative reports whether any counter is below zero.
func (c Counters) Negative() bool {
	return c.Total < 0 || c.Completed < 0 || c.Pending < 0 || c.Errors < 0
}

// Check verifies that no counter is negative and that the total equals the
// sum of the per-state counters.
func (c Counters) Check() error {
	if c.Negative() {
		return fmt.Errorf("negative counter in %+v", c)
	}
	if c.Total != c.Completed+c.Pending+c.Errors {
		return fmt.Errorf("total %d != completed %d + pending %d + errors %d",
			c.Total, c.Completed, c.Pending, c.Errors)
	}
	return nil
}

// TransitionDelta returns the counter change for moving one row between
// states. An empty from means the row is new.
func TransitionDelta(from, to TaskStatus) Counters {
	var d Counters
	if from == "" {
		d.Total++
	}
	d = d.bump(from, -1)
	return d.bump(to, 1)
}

func (c Counters) bump(s TaskStatus, n int) Counters {
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusCompleted:
		c.Completed += n
	case StatusError:
		c.Errors += n
	}
	return c
}

// CountRows derives counters from the rows alone.
func CountRows(rows []Task) Counters {
	var c Counters
	for _, r := range rows {
		c = c.Add(TransitionDelta("", r.Status))
	}
	return c
}

// Board is the parsed status board document.
type Board struct {
	Counters    Counters `yaml:"counters" json:"counters"`
	LastUpdated string   `yaml:"last_updated,omitempty" json:"last_updated,omitempty"`
	Tasks       []Task   `yaml:"tasks" json:"tasks"`
}

// Find returns the index of the row named name, or -1.
func (b *Board) Find(name string) int {
	for i := range b.Tasks {
		if b.Tasks[i].Name == name {
			return i
		}
	}
	return -1
}

// Row returns a copy of the row named name.
func (b *Board) Row(name string) (Task, bool) {
	if i := b.Find(name); i >= 0 {
		return b.Tasks[i], true
	}
	return Task{}, false
}
