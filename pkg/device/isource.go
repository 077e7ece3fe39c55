package device

import (
	"fmt"
	"math"

	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// CurrentSource is an independent current source driving current from its
// first node through the source to its second node.
type CurrentSource struct {
	BaseDevice
	ctype SourceType
	// DC, common params
	dcValue float64
	// SIN params
	amplitude float64
	freq      float64
	phase     float64
}

func NewDCCurrentSource(name string, nodeNames []string, value float64) *CurrentSource {
	return &CurrentSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		ctype:      DC,
		dcValue:    value,
	}
}

func NewSinCurrentSource(name string, nodeNames []string, offset, amplitude, freq, phase float64) *CurrentSource {
	return &CurrentSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		ctype:      SIN,
		dcValue:    offset,
		amplitude:  amplitude,
		freq:       freq,
		phase:      phase,
	}
}

// Current returns the source value at time t.
func (c *CurrentSource) Current(t float64) float64 {
	switch c.ctype {
	case SIN:
		phaseRad := c.phase * math.Pi / 180.0
		return c.dcValue + c.amplitude*math.Sin(2.0*math.Pi*c.freq*t+phaseRad)
	default:
		return c.dcValue
	}
}

func (c *CurrentSource) Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *mna.NodeMap, time float64) error {
	if len(c.Nodes()) != 2 {
		return fmt.Errorf("current source %s: requires exactly 2 nodes", c.Name())
	}

	val := c.Current(time)
	addNodeCurrent(rhs, nodes, c.Nodes()[0], -val)
	addNodeCurrent(rhs, nodes, c.Nodes()[1], val)
	return nil
}

// Power returns the power delivered at the solved operating point.
func (c *CurrentSource) Power(x *numeric.Vector, nodes *mna.NodeMap) float64 {
	v := voltageAcross(x, nodes, c.Nodes()[0], c.Nodes()[1])
	return v * c.Current(0)
}
