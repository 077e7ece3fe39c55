// Package device implements the circuit elements consumed by the DC
// operating-point analysis. Linear devices stamp conductances and
// excitations; nonlinear devices (diode, switch) additionally stamp their
// residual current and Jacobian as pure functions of the solution guess.
package device

import (
	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// SourceType selects the waveform of an independent source.
type SourceType int

const (
	DC SourceType = iota
	SIN
	PULSE
	PWL
)

// BaseDevice carries the naming shared by every element.
type BaseDevice struct {
	name      string
	nodeNames []string
}

func NewBaseDevice(name string, nodeNames []string) BaseDevice {
	return BaseDevice{name: name, nodeNames: nodeNames}
}

func (d *BaseDevice) Name() string    { return d.name }
func (d *BaseDevice) Nodes() []string { return d.nodeNames }

// stampConductance adds a two-terminal conductance between n1 and n2.
// Ground and unregistered nodes are skipped per the NodeMap contract.
func stampConductance(g *numeric.Matrix, nodes *mna.NodeMap, n1, n2 string, val float64) {
	i, ok1 := nodes.NodeIndex(n1)
	j, ok2 := nodes.NodeIndex(n2)

	if ok1 {
		g.AddAt(i, i, val)
		if ok2 {
			g.AddAt(i, j, -val)
		}
	}
	if ok2 {
		if ok1 {
			g.AddAt(j, i, -val)
		}
		g.AddAt(j, j, val)
	}
}

// addNodeCurrent accumulates a current onto a node row of a residual or rhs
// vector, skipping ground and unregistered nodes.
func addNodeCurrent(v *numeric.Vector, nodes *mna.NodeMap, node string, val float64) {
	if i, ok := nodes.NodeIndex(node); ok {
		v.AddAt(i, val)
	}
}

// voltageAcross reads v(n1) - v(n2) from a solution vector, with ground and
// unregistered nodes contributing zero.
func voltageAcross(x *numeric.Vector, nodes *mna.NodeMap, n1, n2 string) float64 {
	var v1, v2 float64
	if i, ok := nodes.NodeIndex(n1); ok {
		v1 = x.At(i)
	}
	if j, ok := nodes.NodeIndex(n2); ok {
		v2 = x.At(j)
	}
	return v1 - v2
}
