package device

import (
	"fmt"

	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// Capacitor behaves as an open circuit at the DC operating point. It keeps
// its value so netlists carry through unchanged; only an optional leakage
// conductance reaches the matrix.
type Capacitor struct {
	BaseDevice
	Value   float64
	Leakage float64
}

func NewCapacitor(name string, nodeNames []string, value float64) *Capacitor {
	return &Capacitor{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Value:      value,
	}
}

func (c *Capacitor) Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *mna.NodeMap, time float64) error {
	if len(c.Nodes()) != 2 {
		return fmt.Errorf("capacitor %s: requires exactly 2 nodes", c.Name())
	}
	if c.Leakage > 0 {
		stampConductance(g, nodes, c.Nodes()[0], c.Nodes()[1], c.Leakage)
	}
	return nil
}
