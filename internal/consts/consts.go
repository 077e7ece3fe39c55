package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // Kelvin temperature (K)
	TNOM      = 300.15        // Nominal device temperature, 27degC (K)
)

// ThermalVoltage returns kT/q for the given temperature.
func ThermalVoltage(temp float64) float64 {
	if temp <= 0 {
		temp = TNOM
	}
	return BOLTZMANN * temp / CHARGE
}
