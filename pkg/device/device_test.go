package device_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohmlab/gospice/pkg/device"
	"github.com/ohmlab/gospice/pkg/mna"
	"github.com/ohmlab/gospice/pkg/numeric"
)

// analyze builds a NodeMap over the given components.
func analyze(t *testing.T, comps ...mna.Component) *mna.NodeMap {
	t.Helper()
	nm, err := mna.NewBuilder().AnalyzeCircuit(comps)
	require.NoError(t, err)
	return nm
}

// buffers allocates zeroed stamp targets for the map.
func buffers(nm *mna.NodeMap) (*numeric.Matrix, *numeric.Vector) {
	return numeric.NewMatrix(nm.Size(), nm.Size()), numeric.NewVector(nm.Size())
}

func TestResistorStamp(t *testing.T) {
	r := device.NewResistor("R1", []string{"a", "b"}, 2.0)
	nm := analyze(t, r)
	g, rhs, err := mnaBuild(nm, r)
	require.NoError(t, err)

	require.InDelta(t, 0.5, g.At(0, 0), 1e-15)
	require.InDelta(t, -0.5, g.At(0, 1), 1e-15)
	require.InDelta(t, -0.5, g.At(1, 0), 1e-15)
	require.InDelta(t, 0.5, g.At(1, 1), 1e-15)
	require.Equal(t, 0.0, rhs.At(0))
}

// mnaBuild stamps comps onto fresh buffers using an already-built map.
func mnaBuild(nm *mna.NodeMap, comps ...mna.Component) (*numeric.Matrix, *numeric.Vector, error) {
	g := numeric.NewMatrix(nm.Size(), nm.Size())
	rhs := numeric.NewVector(nm.Size())
	for _, c := range comps {
		if err := c.Stamp(g, rhs, nm, 0); err != nil {
			return nil, nil, err
		}
	}
	return g, rhs, nil
}

func TestResistorGroundedStamp(t *testing.T) {
	r := device.NewResistor("R1", []string{"a", "0"}, 4.0)
	nm := analyze(t, r)
	g, _, err := mnaBuild(nm, r)
	require.NoError(t, err)

	require.Equal(t, 1, nm.Size())
	require.InDelta(t, 0.25, g.At(0, 0), 1e-15)
}

func TestResistorRejectsZeroValue(t *testing.T) {
	r := device.NewResistor("R1", []string{"a", "b"}, 0)
	nm := analyze(t, r)
	_, _, err := mnaBuild(nm, r)
	require.Error(t, err)
}

func TestVoltageSourceStamp(t *testing.T) {
	v := device.NewDCVoltageSource("V1", []string{"a", "0"}, 5)
	nm := analyze(t, v)
	g, rhs, err := mnaBuild(nm, v)
	require.NoError(t, err)

	bIdx, ok := nm.BranchIndex("V1")
	require.True(t, ok)
	require.Equal(t, 1, bIdx)
	require.InDelta(t, 1, g.At(bIdx, 0), 1e-15)
	require.InDelta(t, 1, g.At(0, bIdx), 1e-15)
	require.InDelta(t, 5, rhs.At(bIdx), 1e-15)
}

func TestSinVoltageSourceAtTime(t *testing.T) {
	v := device.NewSinVoltageSource("V1", []string{"a", "0"}, 1, 2, 1000, 0)
	require.InDelta(t, 1, v.Voltage(0), 1e-12)
	require.InDelta(t, 3, v.Voltage(0.25e-3), 1e-9) // quarter period peak
}

func TestPulseVoltageSource(t *testing.T) {
	v := device.NewPulseVoltageSource("V1", []string{"a", "0"}, 0, 5, 1e-3, 1e-6, 1e-6, 1e-3, 4e-3)
	require.Equal(t, 0.0, v.Voltage(0))
	require.InDelta(t, 5, v.Voltage(1.5e-3), 1e-12)
	require.Equal(t, 0.0, v.Voltage(3.5e-3))
}

func TestPWLVoltageSource(t *testing.T) {
	v := device.NewPWLVoltageSource("V1", []string{"a", "0"}, []float64{0, 1, 2}, []float64{0, 10, 10})
	require.Equal(t, 0.0, v.Voltage(0))
	require.InDelta(t, 5, v.Voltage(0.5), 1e-12)
	require.Equal(t, 10.0, v.Voltage(5))
}

func TestCurrentSourceStamp(t *testing.T) {
	i := device.NewDCCurrentSource("I1", []string{"a", "b"}, 1e-3)
	nm := analyze(t, i)
	_, rhs, err := mnaBuild(nm, i)
	require.NoError(t, err)

	// Current flows a -> b through the source: it leaves node a.
	require.InDelta(t, -1e-3, rhs.At(0), 1e-18)
	require.InDelta(t, 1e-3, rhs.At(1), 1e-18)
}

func TestCapacitorOpenAtDC(t *testing.T) {
	c := device.NewCapacitor("C1", []string{"a", "b"}, 1e-6)
	nm := analyze(t, c)
	g, _, err := mnaBuild(nm, c)
	require.NoError(t, err)

	require.Equal(t, 0.0, g.At(0, 0))
	require.Equal(t, 0.0, g.At(1, 1))
}

func TestInductorShortAtDC(t *testing.T) {
	l := device.NewInductor("L1", []string{"a", "b"}, 1e-3)
	nm := analyze(t, l)
	g, rhs, err := mnaBuild(nm, l)
	require.NoError(t, err)

	bIdx, ok := nm.BranchIndex("L1")
	require.True(t, ok)
	require.InDelta(t, 1, g.At(bIdx, 0), 1e-15)
	require.InDelta(t, -1, g.At(bIdx, 1), 1e-15)
	require.Equal(t, 0.0, rhs.At(bIdx), "DC inductor branch forces zero volts")
}

func TestDiodeResidualJacobianConsistent(t *testing.T) {
	// Finite-difference check of the Jacobian around a forward-bias point.
	d := device.NewDiode("D1", []string{"a", "0"})
	nm := analyze(t, d)

	at := func(v float64) float64 {
		res := numeric.NewVector(1)
		require.NoError(t, d.StampResidual(res, numeric.VectorOf(v), nm))
		return res.At(0)
	}

	v0 := 0.6
	h := 1e-8
	fd := (at(v0+h) - at(v0-h)) / (2 * h)

	jac := numeric.NewMatrix(1, 1)
	require.NoError(t, d.StampJacobian(jac, numeric.VectorOf(v0), nm))
	require.InDelta(t, fd, jac.At(0, 0), fd*1e-5)
}

func TestDiodeClampsLargeForwardBias(t *testing.T) {
	d := device.NewDiode("D1", []string{"a", "0"})
	nm := analyze(t, d)

	res := numeric.NewVector(1)
	require.NoError(t, d.StampResidual(res, numeric.VectorOf(50), nm))
	require.True(t, res.IsFinite(), "clamped junction current must stay finite")
}

func TestDiodeReverseBias(t *testing.T) {
	d := device.NewDiode("D1", []string{"a", "0"})
	nm := analyze(t, d)

	res := numeric.NewVector(1)
	require.NoError(t, d.StampResidual(res, numeric.VectorOf(-5), nm))
	// Leakage: roughly -Is plus the gmin term.
	require.Less(t, res.At(0), 0.0)
	require.Greater(t, res.At(0), -1e-10)
}

func TestSwitchConductanceEnds(t *testing.T) {
	s := device.NewVSwitch("S1", []string{"a", "0", "c", "0"})
	nm := analyze(t, s)

	// Control far above threshold: on resistance dominates.
	x := numeric.NewVector(nm.Size())
	aIdx, _ := nm.NodeIndex("a")
	cIdx, _ := nm.NodeIndex("c")
	x.SetAt(aIdx, 1.0)
	x.SetAt(cIdx, 10.0)

	res := numeric.NewVector(nm.Size())
	require.NoError(t, s.StampResidual(res, x, nm))
	require.InDelta(t, 1.0, res.At(aIdx), 1e-6, "on switch carries ~v/Ron")

	// Control far below threshold: off resistance dominates.
	x.SetAt(cIdx, -10.0)
	res.Zero()
	require.NoError(t, s.StampResidual(res, x, nm))
	require.InDelta(t, 1e-6, res.At(aIdx), 1e-9, "off switch carries ~v/Roff")
}

func TestSwitchJacobianCrossTerms(t *testing.T) {
	// Finite-difference check of the control-voltage cross term in the
	// middle of the transition where dg/dvc is largest.
	s := device.NewVSwitch("S1", []string{"a", "0", "c", "0"})
	nm := analyze(t, s)
	aIdx, _ := nm.NodeIndex("a")
	cIdx, _ := nm.NodeIndex("c")

	at := func(vc float64) float64 {
		x := numeric.NewVector(nm.Size())
		x.SetAt(aIdx, 1.0)
		x.SetAt(cIdx, vc)
		res := numeric.NewVector(nm.Size())
		if err := s.StampResidual(res, x, nm); err != nil {
			panic(err)
		}
		return res.At(aIdx)
	}

	vc := 0.02
	h := 1e-7
	fd := (at(vc+h) - at(vc-h)) / (2 * h)

	x := numeric.NewVector(nm.Size())
	x.SetAt(aIdx, 1.0)
	x.SetAt(cIdx, vc)
	jac := numeric.NewMatrix(nm.Size(), nm.Size())
	require.NoError(t, s.StampJacobian(jac, x, nm))
	require.InDelta(t, fd, jac.At(aIdx, cIdx), 1e-4)
}

func TestDevicePower(t *testing.T) {
	r := device.NewResistor("R1", []string{"a", "0"}, 100)
	nm := analyze(t, r)
	aIdx, _ := nm.NodeIndex("a")
	x := numeric.NewVector(nm.Size())
	x.SetAt(aIdx, 10)

	require.InDelta(t, 1.0, r.Power(x, nm), 1e-12) // 10V across 100 ohms
}
