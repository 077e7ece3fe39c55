package device

import (
	"fmt"
	"math"

	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// VSwitch is a voltage-controlled switch with a smooth on/off transition.
// Nodes are (n+, n-, c+, c-). The branch conductance follows a logistic ramp
// of the control voltage, so the device stays differentiable but turns very
// stiff for small transition widths; it is the classic ill-conditioned case
// the homotopy solver exists for.
type VSwitch struct {
	BaseDevice
	Ron  float64 // On resistance
	Roff float64 // Off resistance
	Vt   float64 // Threshold control voltage
	Dv   float64 // Transition width
}

func NewVSwitch(name string, nodeNames []string) *VSwitch {
	return &VSwitch{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Ron:        1.0,
		Roff:       1e6,
		Vt:         0.0,
		Dv:         0.1,
	}
}

func (s *VSwitch) SetModelParameters(params map[string]float64) {
	if ron, ok := params["ron"]; ok {
		s.Ron = ron
	}
	if roff, ok := params["roff"]; ok {
		s.Roff = roff
	}
	if vt, ok := params["vt"]; ok {
		s.Vt = vt
	}
	if dv, ok := params["dv"]; ok {
		s.Dv = dv
	}
}

// conductance returns the branch conductance at control voltage vc and its
// derivative with respect to vc.
func (s *VSwitch) conductance(vc float64) (g, dg float64) {
	gon := 1.0 / s.Ron
	goff := 1.0 / s.Roff
	k := 1.0 / s.Dv

	arg := k * (vc - s.Vt)
	// Saturated logistic; keeps exp finite for large control swings.
	if arg > expArgLimit {
		return gon, 0
	}
	if arg < -expArgLimit {
		return goff, 0
	}

	sig := 1.0 / (1.0 + math.Exp(-arg))
	g = goff + (gon-goff)*sig
	dg = (gon - goff) * k * sig * (1 - sig)
	return g, dg
}

func (s *VSwitch) checkNodes() error {
	if len(s.Nodes()) != 4 {
		return fmt.Errorf("switch %s: requires exactly 4 nodes", s.Name())
	}
	return nil
}

// Stamp contributes the off conductance as the linear baseline.
func (s *VSwitch) Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *mna.NodeMap, time float64) error {
	if err := s.checkNodes(); err != nil {
		return err
	}
	stampConductance(g, nodes, s.Nodes()[0], s.Nodes()[1], 1.0/s.Roff)
	return nil
}

// StampResidual adds the switch branch current g(vc)*vd onto the KCL rows.
func (s *VSwitch) StampResidual(res *numeric.Vector, x *numeric.Vector, nodes *mna.NodeMap) error {
	if err := s.checkNodes(); err != nil {
		return err
	}

	vd := voltageAcross(x, nodes, s.Nodes()[0], s.Nodes()[1])
	vc := voltageAcross(x, nodes, s.Nodes()[2], s.Nodes()[3])
	g, _ := s.conductance(vc)

	i := g * vd
	addNodeCurrent(res, nodes, s.Nodes()[0], i)
	addNodeCurrent(res, nodes, s.Nodes()[1], -i)
	return nil
}

// StampJacobian adds d i/d vd on the branch nodes and the cross terms
// d i/d vc on the control nodes.
func (s *VSwitch) StampJacobian(jac *numeric.Matrix, x *numeric.Vector, nodes *mna.NodeMap) error {
	if err := s.checkNodes(); err != nil {
		return err
	}

	vd := voltageAcross(x, nodes, s.Nodes()[0], s.Nodes()[1])
	vc := voltageAcross(x, nodes, s.Nodes()[2], s.Nodes()[3])
	g, dg := s.conductance(vc)

	stampConductance(jac, nodes, s.Nodes()[0], s.Nodes()[1], g)

	// Cross terms: rows n+/n-, columns c+/c-.
	n1, ok1 := nodes.NodeIndex(s.Nodes()[0])
	n2, ok2 := nodes.NodeIndex(s.Nodes()[1])
	c1, okc1 := nodes.NodeIndex(s.Nodes()[2])
	c2, okc2 := nodes.NodeIndex(s.Nodes()[3])

	didvc := vd * dg
	if ok1 {
		if okc1 {
			jac.AddAt(n1, c1, didvc)
		}
		if okc2 {
			jac.AddAt(n1, c2, -didvc)
		}
	}
	if ok2 {
		if okc1 {
			jac.AddAt(n2, c1, -didvc)
		}
		if okc2 {
			jac.AddAt(n2, c2, didvc)
		}
	}
	return nil
}

// Power returns the power dissipated in the switch branch.
func (s *VSwitch) Power(x *numeric.Vector, nodes *mna.NodeMap) float64 {
	vd := voltageAcross(x, nodes, s.Nodes()[0], s.Nodes()[1])
	vc := voltageAcross(x, nodes, s.Nodes()[2], s.Nodes()[3])
	g, _ := s.conductance(vc)
	return g * vd * vd
}
