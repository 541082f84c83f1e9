package processors

import "github.com/san-kum/nsflow/internal/stepper"

// Snapshots keeps copies of the solution, dropping the oldest beyond Max.
type Snapshots struct {
	every int
	Max   int
	list  []stepper.State
}

func NewSnapshots(every, limit int) *Snapshots {
	return &Snapshots{every: every, Max: limit}
}

func (s *Snapshots) Every() int { return s.every }

func (s *Snapshots) Initialize(_ stepper.State) error {
	s.list = s.list[:0]
	return nil
}

func (s *Snapshots) Process(st stepper.State) error {
	c := st.Clone()
	c.Vprev, c.Pprev = nil, nil
	s.list = append(s.list, c)
	if s.Max > 0 && len(s.list) > s.Max {
		s.list = s.list[len(s.list)-s.Max:]
	}
	return nil
}

func (s *Snapshots) Finalize() error { return nil }

func (s *Snapshots) List() []stepper.State { return s.list }
