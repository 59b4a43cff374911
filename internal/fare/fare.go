// Package fare prices a ride from a static zone-pair table. There is no
// distance calculation and no dynamic pricing; unknown pairs fall back to a
// flat default.
package fare

const DefaultFare = 300

var matrix = map[string]map[string]float64{
	"CMRCET":      {"Hitech City": 250, "Airport": 400},
	"Hitech City": {"CMRCET": 250, "Airport": 500},
	"Airport":     {"CMRCET": 400, "Hitech City": 500},
}

// ForRoute returns the fare for the ordered (from, to) zone pair.
func ForRoute(from, to string) float64 {
	if fares, ok := matrix[from]; ok {
		if f, ok := fares[to]; ok {
			return f
		}
	}
	return DefaultFare
}

// Zones lists every zone that appears in the fare table.
func Zones() []string {
	zones := make([]string, 0, len(matrix))
	for z := range matrix {
		zones = append(zones, z)
	}
	return zones
}
