package device

import (
	"fmt"

	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// Inductor behaves as a short circuit at the DC operating point: a zero-volt
// branch constraint whose unknown is the inductor current.
type Inductor struct {
	BaseDevice
	Value float64
}

func NewInductor(name string, nodeNames []string, value float64) *Inductor {
	return &Inductor{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Value:      value,
	}
}

// BranchName satisfies mna.Branched.
func (l *Inductor) BranchName() string { return l.Name() }

func (l *Inductor) Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *mna.NodeMap, time float64) error {
	if len(l.Nodes()) != 2 {
		return fmt.Errorf("inductor %s: requires exactly 2 nodes", l.Name())
	}

	bIdx, ok := nodes.BranchIndex(l.Name())
	if !ok {
		return nil
	}

	// v1 - v2 = 0 at DC
	if n1, ok := nodes.NodeIndex(l.Nodes()[0]); ok {
		g.AddAt(bIdx, n1, 1)
		g.AddAt(n1, bIdx, 1)
	}
	if n2, ok := nodes.NodeIndex(l.Nodes()[1]); ok {
		g.AddAt(bIdx, n2, -1)
		g.AddAt(n2, bIdx, -1)
	}
	return nil
}
