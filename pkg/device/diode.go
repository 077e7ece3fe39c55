package device

import (
	"fmt"
	"math"

	"github.com/ohmlab/gospice/internal/consts"
	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// Diode is the exponential junction diode. It is a pure function of the
// solution guess: every stamp recomputes current and conductance from the
// junction voltage found in x, with no state carried between calls.
type Diode struct {
	BaseDevice
	// Model parameters
	Is   float64 // Saturation current
	N    float64 // Emission coefficient
	M    float64 // Grading coefficient
	Vj   float64 // Built-in potential
	Bv   float64 // Breakdown voltage
	Gmin float64 // Minimum conductance

	// Temperature parameters
	Eg   float64 // Energy gap (eV)
	Xti  float64 // Saturation current temperature exponent
	Temp float64 // Operating temperature (K)
}

// expArgLimit caps the exponent of the junction equation; past it the
// current saturates instead of overflowing.
const expArgLimit = 40.0

func NewDiode(name string, nodeNames []string) *Diode {
	d := &Diode{BaseDevice: NewBaseDevice(name, nodeNames)}
	d.setDefaultParameters()
	return d
}

func (d *Diode) setDefaultParameters() {
	d.Is = 1e-14
	d.N = 1.0
	d.M = 0.5
	d.Vj = 1.0
	d.Bv = 100.0
	d.Gmin = 1e-12
	d.Eg = 1.11 // Silicon bandgap
	d.Xti = 3.0
	d.Temp = consts.TNOM
}

func (d *Diode) SetModelParameters(params map[string]float64) {
	if is, ok := params["is"]; ok {
		d.Is = is
	}
	if n, ok := params["n"]; ok {
		d.N = n
	}
	if m, ok := params["m"]; ok {
		d.M = m
	}
	if vj, ok := params["vj"]; ok {
		d.Vj = vj
	}
	if bv, ok := params["bv"]; ok {
		d.Bv = bv
	}
	if eg, ok := params["eg"]; ok {
		d.Eg = eg
	}
	if xti, ok := params["xti"]; ok {
		d.Xti = xti
	}
}

func (d *Diode) temperatureAdjustedIs(temp float64) float64 {
	vt := consts.ThermalVoltage(temp)

	// is(T2) = is(T1) * (T2/T1)^(XTI/N) * exp(-(Eg/(2*k))*(1/T2 - 1/T1))
	ratio := temp / consts.TNOM
	egfact := -d.Eg / (2 * vt) * (temp/consts.TNOM - 1.0)

	return d.Is * math.Pow(ratio, d.Xti/d.N) * math.Exp(egfact)
}

// current returns the junction current at voltage vd.
func (d *Diode) current(vd float64) float64 {
	nvt := d.N * consts.ThermalVoltage(d.Temp)
	isat := d.temperatureAdjustedIs(d.Temp)

	// Forward bias and weak reverse bias
	if vd > -3.0*nvt {
		arg := vd / nvt
		if arg > expArgLimit {
			arg = expArgLimit
		}
		return isat*(math.Exp(arg)-1.0) + d.Gmin*vd
	}

	return -isat + d.Gmin*vd
}

// conductance returns di/dv at voltage vd, consistent with current.
func (d *Diode) conductance(vd float64) float64 {
	nvt := d.N * consts.ThermalVoltage(d.Temp)
	isat := d.temperatureAdjustedIs(d.Temp)

	if vd > -3.0*nvt {
		arg := vd / nvt
		if arg > expArgLimit {
			arg = expArgLimit
		}
		return isat/nvt*math.Exp(arg) + d.Gmin
	}

	return d.Gmin
}

// Stamp contributes only the stabilizing minimum conductance; the junction
// itself enters the system through the residual and Jacobian stamps.
func (d *Diode) Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *mna.NodeMap, time float64) error {
	if len(d.Nodes()) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name())
	}
	stampConductance(g, nodes, d.Nodes()[0], d.Nodes()[1], d.Gmin)
	return nil
}

// StampResidual adds the junction current at the guess x onto the KCL rows
// of anode and cathode.
func (d *Diode) StampResidual(res *numeric.Vector, x *numeric.Vector, nodes *mna.NodeMap) error {
	if len(d.Nodes()) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name())
	}

	vd := voltageAcross(x, nodes, d.Nodes()[0], d.Nodes()[1])
	id := d.current(vd)

	addNodeCurrent(res, nodes, d.Nodes()[0], id)
	addNodeCurrent(res, nodes, d.Nodes()[1], -id)
	return nil
}

// StampJacobian adds the junction conductance at the guess x.
func (d *Diode) StampJacobian(jac *numeric.Matrix, x *numeric.Vector, nodes *mna.NodeMap) error {
	if len(d.Nodes()) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name())
	}

	vd := voltageAcross(x, nodes, d.Nodes()[0], d.Nodes()[1])
	stampConductance(jac, nodes, d.Nodes()[0], d.Nodes()[1], d.conductance(vd))
	return nil
}

// Power returns the power dissipated in the junction at the solved operating
// point.
func (d *Diode) Power(x *numeric.Vector, nodes *mna.NodeMap) float64 {
	vd := voltageAcross(x, nodes, d.Nodes()[0], d.Nodes()[1])
	return vd * d.current(vd)
}
