package device

import (
	"fmt"

	"github.com/ohmlab/gospice/internal/consts"
	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

type Resistor struct {
	BaseDevice
	Value float64
	Tc1   float64
	Tc2   float64
	Tnom  float64
	Temp  float64
}

func NewResistor(name string, nodeNames []string, value float64) *Resistor {
	return &Resistor{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Value:      value,
		Tnom:       consts.TNOM,
		Temp:       consts.TNOM,
	}
}

func (r *Resistor) Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *mna.NodeMap, time float64) error {
	if len(r.Nodes()) != 2 {
		return fmt.Errorf("resistor %s: requires exactly 2 nodes", r.Name())
	}
	if r.Value == 0 {
		return fmt.Errorf("resistor %s: zero resistance", r.Name())
	}

	cond := 1.0 / r.temperatureAdjustedValue(r.Temp)
	stampConductance(g, nodes, r.Nodes()[0], r.Nodes()[1], cond)
	return nil
}

// Power returns the dissipated power V^2/R at the solved operating point.
func (r *Resistor) Power(x *numeric.Vector, nodes *mna.NodeMap) float64 {
	v := voltageAcross(x, nodes, r.Nodes()[0], r.Nodes()[1])
	return v * v / r.temperatureAdjustedValue(r.Temp)
}

func (r *Resistor) temperatureAdjustedValue(temp float64) float64 {
	dt := temp - r.Tnom
	factor := 1.0 + r.Tc1*dt + r.Tc2*dt*dt
	return r.Value * factor
}
