package sensor

// ToCelsius converts a Fahrenheit temperature to Celsius
func ToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// ToFahrenheit converts a Celsius temperature to Fahrenheit
func ToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
