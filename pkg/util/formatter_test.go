package util_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohmlab/gospice/pkg/util"
)

func TestFormatValueFactor(t *testing.T) {
	cases := []struct {
		value float64
		unit  string
		want  string
	}{
		{4.31e-3, "A", "4.310 mA"},
		{0.693, "V", "693.000 mV"},
		{5, "V", "5.000 V"},
		{4700, "Ohm", "4.700 kOhm"},
		{2.2e6, "Ohm", "2.200 MOhm"},
		{15e-9, "A", "15.000 nA"},
		{3.3e-12, "F", "3.300 pF"},
		{0, "W", "0.000 W"},
		{-2.5e-3, "W", "-2.500 mW"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, util.FormatValueFactor(tc.value, tc.unit))
	}
}
