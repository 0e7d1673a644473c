package camera

import "math"

func sin(rad float32) float32 { return float32(math.Sin(float64(rad))) }
func cos(rad float32) float32 { return float32(math.Cos(float64(rad))) }
