// Package mna maps circuit nodes and branches onto linear-system indices and
// assembles the linear part of the modified nodal analysis system.
package mna

import (
	"github.com/ohmlab/gospice/pkg/numeric"
)

// Component is a circuit element that contributes linear stamps. Stamps are
// additive onto caller-zeroed buffers; a component holds no solver-visible
// state of its own.
type Component interface {
	Name() string
	Nodes() []string
	Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *NodeMap, time float64) error
}

// Nonlinear components additionally contribute Jacobian and residual stamps
// as pure functions of the solution guess x.
type Nonlinear interface {
	Component
	StampJacobian(jac *numeric.Matrix, x *numeric.Vector, nodes *NodeMap) error
	StampResidual(res *numeric.Vector, x *numeric.Vector, nodes *NodeMap) error
}

// Branched components need an MNA branch-current unknown (voltage sources and
// anything else that cannot be expressed as a node conductance).
type Branched interface {
	BranchName() string
}

// IsNonlinear classifies a component by capability.
func IsNonlinear(c Component) bool {
	_, ok := c.(Nonlinear)
	return ok
}
