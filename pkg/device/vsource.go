package device

import (
	"fmt"
	"math"

	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// VoltageSource is an independent voltage source. It carries an MNA branch
// unknown for its current, named after the device.
type VoltageSource struct {
	BaseDevice
	vtype SourceType
	// DC, common params
	dcValue float64
	// SIN params
	amplitude float64
	freq      float64
	phase     float64
	// PULSE params
	v1     float64
	v2     float64
	delay  float64
	rise   float64
	fall   float64
	pWidth float64
	period float64
	// PWL params
	times  []float64
	values []float64
}

func NewDCVoltageSource(name string, nodeNames []string, value float64) *VoltageSource {
	return &VoltageSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		vtype:      DC,
		dcValue:    value,
	}
}

func NewSinVoltageSource(name string, nodeNames []string, offset, amplitude, freq, phase float64) *VoltageSource {
	return &VoltageSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		vtype:      SIN,
		dcValue:    offset,
		amplitude:  amplitude,
		freq:       freq,
		phase:      phase,
	}
}

func NewPulseVoltageSource(name string, nodeNames []string, v1, v2, delay, rise, fall, pWidth, period float64) *VoltageSource {
	return &VoltageSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		vtype:      PULSE,
		v1:         v1,
		v2:         v2,
		delay:      delay,
		rise:       rise,
		fall:       fall,
		pWidth:     pWidth,
		period:     period,
	}
}

func NewPWLVoltageSource(name string, nodeNames []string, times, values []float64) *VoltageSource {
	return &VoltageSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		vtype:      PWL,
		times:      times,
		values:     values,
	}
}

// BranchName satisfies mna.Branched.
func (v *VoltageSource) BranchName() string { return v.Name() }

// Voltage returns the source value at time t.
func (v *VoltageSource) Voltage(t float64) float64 {
	switch v.vtype {
	case DC:
		return v.dcValue
	case SIN:
		phaseRad := v.phase * math.Pi / 180.0
		return v.dcValue + v.amplitude*math.Sin(2.0*math.Pi*v.freq*t+phaseRad)
	case PULSE:
		return v.pulseVoltage(t)
	case PWL:
		return v.pwlVoltage(t)
	default:
		return 0
	}
}

func (v *VoltageSource) SetValue(value float64) {
	v.dcValue = value
}

func (v *VoltageSource) Stamp(g *numeric.Matrix, rhs *numeric.Vector, nodes *mna.NodeMap, time float64) error {
	if len(v.Nodes()) != 2 {
		return fmt.Errorf("voltage source %s: requires exactly 2 nodes", v.Name())
	}

	bIdx, ok := nodes.BranchIndex(v.Name())
	if !ok {
		return nil
	}

	// v1 - v2 = V
	if n1, ok := nodes.NodeIndex(v.Nodes()[0]); ok {
		g.AddAt(bIdx, n1, 1)
		g.AddAt(n1, bIdx, 1)
	}
	if n2, ok := nodes.NodeIndex(v.Nodes()[1]); ok {
		g.AddAt(bIdx, n2, -1)
		g.AddAt(n2, bIdx, -1)
	}

	rhs.AddAt(bIdx, v.Voltage(time))
	return nil
}

// Power returns the power delivered by the source at the solved operating
// point, taken from its branch current.
func (v *VoltageSource) Power(x *numeric.Vector, nodes *mna.NodeMap) float64 {
	bIdx, ok := nodes.BranchIndex(v.Name())
	if !ok {
		return 0
	}
	// Branch unknown is the current into the positive terminal.
	return v.Voltage(0) * -x.At(bIdx)
}

func (v *VoltageSource) pulseVoltage(t float64) float64 {
	if t < v.delay {
		return v.v1
	}

	t = t - v.delay
	if v.period > 0 {
		t = math.Mod(t, v.period)
	}

	if t < v.rise {
		if v.rise == 0 {
			return v.v2
		}
		return v.v1 + (v.v2-v.v1)*t/v.rise
	}

	if t < v.rise+v.pWidth {
		return v.v2
	}

	fallStart := v.rise + v.pWidth
	if t < fallStart+v.fall {
		if v.fall == 0 {
			return v.v1
		}
		return v.v2 - (v.v2-v.v1)*(t-fallStart)/v.fall
	}

	return v.v1
}

func (v *VoltageSource) pwlVoltage(t float64) float64 {
	if len(v.times) == 0 {
		return 0
	}
	if t <= v.times[0] {
		return v.values[0]
	}

	lastIdx := len(v.times) - 1
	if t >= v.times[lastIdx] {
		return v.values[lastIdx]
	}

	for i := 1; i < len(v.times); i++ {
		if t <= v.times[i] {
			t1, t2 := v.times[i-1], v.times[i]
			v1, v2 := v.values[i-1], v.values[i]
			slope := (v2 - v1) / (t2 - t1)
			return v1 + slope*(t-t1)
		}
	}

	return v.values[lastIdx] // Must not reach
}
