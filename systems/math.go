package systems

import "math"

func distanceSq(x1, y1, x2, y2 float32) float32 {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx + dy*dy
}

// Distance returns the Euclidean distance between two points.
func Distance(x1, y1, x2, y2 float32) float32 {
	return float32(math.Sqrt(float64(distanceSq(x1, y1, x2, y2))))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func floorDiv(v, size float32) int {
	return int(math.Floor(float64(v / size)))
}
