package weather

import "math"

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Airport is a METAR-reporting aerodrome.
type Airport struct {
	ICAO string
	Name string
	Lat  float64
	Lon  float64
}

// Airports is the fixed set considered for historical thunder evidence.
var Airports = []Airport{
	{ICAO: "LPPR", Name: "Porto", Lat: 41.2481, Lon: -8.6814},
	{ICAO: "LPPT", Name: "Lisboa", Lat: 38.7813, Lon: -9.1359},
	{ICAO: "LPFR", Name: "Faro", Lat: 37.0144, Lon: -7.9659},
	{ICAO: "LPBJ", Name: "Beja", Lat: 38.0789, Lon: -7.9324},
	{ICAO: "LPMT", Name: "Montijo", Lat: 38.7039, Lon: -9.0359},
	{ICAO: "LPOV", Name: "Ovar", Lat: 40.9159, Lon: -8.6459},
	{ICAO: "LPMR", Name: "Monte Real", Lat: 39.8283, Lon: -8.8875},
	{ICAO: "LPMA", Name: "Madeira", Lat: 32.6979, Lon: -16.7745},
	{ICAO: "LPPD", Name: "Ponta Delgada", Lat: 37.7412, Lon: -25.6979},
	{ICAO: "LPLA", Name: "Lajes", Lat: 38.7618, Lon: -27.0908},
}

// NearestAirport picks the closest airport to (lat, lon). The second result
// is false only when airports is empty.
func NearestAirport(lat, lon float64, airports []Airport) (Airport, bool) {
	var (
		best  Airport
		bestD = math.Inf(1)
	)
	for _, a := range airports {
		if d := Haversine(lat, lon, a.Lat, a.Lon); d < bestD {
			best, bestD = a, d
		}
	}
	return best, !math.IsInf(bestD, 1)
}
