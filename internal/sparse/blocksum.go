package sparse

import "gonum.org/v1/gonum/mat"

type block struct {
	m      *CSR
	r0, c0 int
	alpha  float64
	pos    []int
}

// BlockSum accumulates scaled matrices placed at offsets of a larger matrix.
// The blocks are referenced, not copied: after their values change, Eval
// refreshes the sum without touching its pattern.
type BlockSum struct {
	rows, cols int
	blocks     []*block
	out        *CSR
}

func NewBlockSum(rows, cols int) *BlockSum {
	return &BlockSum{rows: rows, cols: cols}
}

func (s *BlockSum) Add(m *CSR, r0, c0 int, alpha float64) *BlockSum {
	if s.out != nil {
		panic("sparse: block added after Build")
	}
	r, c := m.Dims()
	if r0 < 0 || c0 < 0 || r0+r > s.rows || c0+c > s.cols {
		panic(mat.ErrShape)
	}
	s.blocks = append(s.blocks, &block{m: m, r0: r0, c0: c0, alpha: alpha})
	return s
}

// Build fixes the pattern and evaluates the sum once.
func (s *BlockSum) Build() *CSR {
	t := NewTriplet(s.rows, s.cols)
	for _, b := range s.blocks {
		b.m.DoNonZero(func(i, j int, _ float64) { t.Append(b.r0+i, b.c0+j, 0) })
	}
	s.out = t.CSR()
	for _, b := range s.blocks {
		b.pos = make([]int, b.m.NNZ())
		k := 0
		b.m.DoNonZero(func(i, j int, _ float64) {
			b.pos[k] = s.out.find(b.r0+i, b.c0+j)
			k++
		})
	}
	s.Eval()
	return s.out
}

func (s *BlockSum) Eval() {
	out := s.out.Data
	for i := range out {
		out[i] = 0
	}
	for _, b := range s.blocks {
		for k, v := range b.m.Data {
			out[b.pos[k]] += b.alpha * v
		}
	}
}

func (s *BlockSum) Out() *CSR { return s.out }
