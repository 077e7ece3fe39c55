package netlist_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohmlab/gospice/pkg/analysis"
	"github.com/ohmlab/gospice/pkg/device"
	"github.com/ohmlab/gospice/pkg/netlist"
)

const diodeDeck = `diode clamp
V1 in 0 DC 5
R1 in out 1k
D1 out 0 DMOD
.model DMOD D(is=1e-14 n=1.0)
.op
.end
`

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1k", 1e3},
		{"2.2u", 2.2e-6},
		{"10meg", 10e6},
		{"1e-3", 1e-3},
		{"-3.3", -3.3},
		{"100n", 100e-9},
		{"5V", 5},
		{"4.7K", 4.7e3},
	}
	for _, tc := range cases {
		got, err := netlist.ParseValue(tc.in)
		require.NoError(t, err, tc.in)
		require.InEpsilon(t, tc.want, got, 1e-12, tc.in)
	}

	_, err := netlist.ParseValue("abc")
	require.ErrorIs(t, err, netlist.ErrInvalidValue)
}

func TestParseDiodeDeck(t *testing.T) {
	deck, err := netlist.Parse(diodeDeck)
	require.NoError(t, err)
	require.Equal(t, "diode clamp", deck.Title)
	require.Len(t, deck.Elements, 3)
	require.Contains(t, deck.Models, "DMOD")
	require.Equal(t, "D", deck.Models["DMOD"].Type)
	require.InEpsilon(t, 1e-14, deck.Models["DMOD"].Params["is"], 1e-12)
}

func TestParseContinuationAndComments(t *testing.T) {
	input := `test circuit
* a comment line
V1 in 0
+ DC 5
R1 in out 1k * inline comment
R2 out 0 2k
.end
`
	deck, err := netlist.Parse(input)
	require.NoError(t, err)
	require.Len(t, deck.Elements, 3)
	require.Equal(t, "V", deck.Elements[0].Type)
	require.InEpsilon(t, 5, deck.Elements[0].Value, 1e-12)
}

func TestParseBareSourceValue(t *testing.T) {
	input := `bare dc
V1 in 0 12
I1 0 a 1m
R1 a 0 1k
`
	deck, err := netlist.Parse(input)
	require.NoError(t, err)
	require.InEpsilon(t, 12, deck.Elements[0].Value, 1e-12)
	require.InEpsilon(t, 1e-3, deck.Elements[1].Value, 1e-12)
}

func TestParseSwitchCard(t *testing.T) {
	input := `switch deck
V1 in 0 10
Vc ctl 0 5
R1 in out 1k
S1 out 0 ctl 0 SMOD
.model SMOD SW(ron=2 roff=1e9 vt=2.5)
`
	deck, err := netlist.Parse(input)
	require.NoError(t, err)

	comps, err := deck.Components()
	require.NoError(t, err)
	require.Len(t, comps, 4)

	sw, ok := comps[3].(*device.VSwitch)
	require.True(t, ok)
	require.Equal(t, []string{"out", "0", "ctl", "0"}, sw.Nodes())
}

func TestParseErrors(t *testing.T) {
	_, err := netlist.Parse("")
	require.ErrorIs(t, err, netlist.ErrEmptyDeck)

	_, err = netlist.Parse("title only\n")
	require.ErrorIs(t, err, netlist.ErrEmptyDeck)

	_, err = netlist.Parse("t\nX1 a b 1k\n")
	require.ErrorIs(t, err, netlist.ErrUnknownCard)

	_, err = netlist.Parse("t\nR1 a b foo\n")
	require.ErrorIs(t, err, netlist.ErrInvalidValue)

	// value field missing entirely
	_, err = netlist.Parse("t\nR1 1 2\n.end\n")
	require.ErrorIs(t, err, netlist.ErrInvalidElement)

	_, err = netlist.Parse("t\nC1 1 2\n.end\n")
	require.ErrorIs(t, err, netlist.ErrInvalidElement)

	_, err = netlist.Parse("t\n.tran 1u 1m\n")
	require.ErrorIs(t, err, netlist.ErrUnknownCard)
}

func TestUndefinedModelRejected(t *testing.T) {
	input := `t
V1 in 0 5
D1 in 0 NOPE
`
	deck, err := netlist.Parse(input)
	require.NoError(t, err)
	_, err = deck.Components()
	require.ErrorIs(t, err, netlist.ErrUndefinedModel)
}

func TestCardsAfterEndIgnored(t *testing.T) {
	input := `t
R1 a 0 1k
.end
garbage that would not parse
`
	deck, err := netlist.Parse(input)
	require.NoError(t, err)
	require.Len(t, deck.Elements, 1)
}

func TestDeckToOperatingPoint(t *testing.T) {
	deck, err := netlist.Parse(diodeDeck)
	require.NoError(t, err)
	comps, err := deck.Components()
	require.NoError(t, err)

	res, err := analysis.NewDC(analysis.DefaultOptions()).Analyze(comps)
	require.NoError(t, err)
	require.True(t, res.Converged, res.FailureReason)
	require.InDelta(t, 0.7, res.NodeVoltages["out"], 0.05)
}
