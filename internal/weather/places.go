package weather

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

type seededPlace struct {
	names []string
	place Place
}

// seededPlaces resolve without any network call.
var seededPlaces = []seededPlace{
	{names: []string{"porto", "oporto"}, place: Place{Name: "Porto", Lat: 41.1496, Lon: -8.6109, Admin1: "Porto", Admin2: "Porto", CountryCode: "PT"}},
	{names: []string{"lisboa", "lisbon"}, place: Place{Name: "Lisboa", Lat: 38.7223, Lon: -9.1393, Admin1: "Lisboa", Admin2: "Lisboa", CountryCode: "PT"}},
	{names: []string{"vila nova de gaia", "gaia"}, place: Place{Name: "Vila Nova de Gaia", Lat: 41.1239, Lon: -8.6118, Admin1: "Porto", Admin2: "Vila Nova de Gaia", CountryCode: "PT"}},
	{names: []string{"matosinhos"}, place: Place{Name: "Matosinhos", Lat: 41.1821, Lon: -8.6891, Admin1: "Porto", Admin2: "Matosinhos", CountryCode: "PT"}},
	{names: []string{"braga"}, place: Place{Name: "Braga", Lat: 41.5454, Lon: -8.4265, Admin1: "Braga", Admin2: "Braga", CountryCode: "PT"}},
	{names: []string{"coimbra"}, place: Place{Name: "Coimbra", Lat: 40.2033, Lon: -8.4103, Admin1: "Coimbra", Admin2: "Coimbra", CountryCode: "PT"}},
	{names: []string{"aveiro"}, place: Place{Name: "Aveiro", Lat: 40.6405, Lon: -8.6538, Admin1: "Aveiro", Admin2: "Aveiro", CountryCode: "PT"}},
	{names: []string{"faro"}, place: Place{Name: "Faro", Lat: 37.0194, Lon: -7.9322, Admin1: "Faro", Admin2: "Faro", CountryCode: "PT"}},
}

// DefaultPlace is used whenever a name cannot be resolved upstream.
var DefaultPlace = seededPlaces[0].place

// LookupSeeded matches name case-insensitively against the static table.
func LookupSeeded(name string) (Place, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range seededPlaces {
		for _, n := range s.names {
			if n == key {
				return s.place, true
			}
		}
	}
	return Place{}, false
}

// PlaceQuery is either a free-text name or explicit coordinates.
type PlaceQuery struct {
	Name string
	Lat  *float64
	Lon  *float64
}

// Resolver maps a PlaceQuery to a Place.
type Resolver struct {
	Geocoder Geocoder
	Country  string
	Default  Place
}

// Resolve fails only on invalid coordinates or an empty query; name lookups
// always produce a place, possibly the default one with a note.
func (r *Resolver) Resolve(ctx context.Context, q PlaceQuery) (Place, []string, error) {
	if q.Lat != nil || q.Lon != nil {
		return resolveCoordinates(q)
	}

	name := strings.TrimSpace(q.Name)
	if name == "" {
		return Place{}, nil, &ValidationError{Field: "place", Reason: "a place name or lat/lon is required"}
	}
	if p, ok := LookupSeeded(name); ok {
		return p, nil, nil
	}

	def := r.Default
	if def.Name == "" {
		def = DefaultPlace
	}
	fallback := []string{fmt.Sprintf("place not found upstream, used default locality %s", def.Name)}

	if r.Geocoder == nil {
		return def, fallback, nil
	}
	candidates, err := r.Geocoder.Search(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str("source", "geocoding").Str("place", name).Msg("geocoding failed")
		return def, fallback, nil
	}
	best, ok := pickCandidate(candidates, r.Country)
	if !ok {
		return def, fallback, nil
	}
	return Place{
		Name:        best.Name,
		Lat:         best.Lat,
		Lon:         best.Lon,
		Admin1:      best.Admin1,
		Admin2:      best.Admin2,
		CountryCode: strings.ToUpper(best.CountryCode),
	}, nil, nil
}

func resolveCoordinates(q PlaceQuery) (Place, []string, error) {
	if q.Lat == nil || q.Lon == nil {
		return Place{}, nil, &ValidationError{Field: "lat/lon", Reason: "both coordinates are required"}
	}
	lat, lon := *q.Lat, *q.Lon
	if lat < -90 || lat > 90 {
		return Place{}, nil, &ValidationError{Field: "lat", Reason: "must be within [-90, 90]"}
	}
	if lon < -180 || lon > 180 {
		return Place{}, nil, &ValidationError{Field: "lon", Reason: "must be within [-180, 180]"}
	}
	name := strings.TrimSpace(q.Name)
	if name == "" {
		name = fmt.Sprintf("%.4f, %.4f", lat, lon)
	}
	return Place{Name: name, Lat: lat, Lon: lon}, nil, nil
}

// IsContinental reports whether the point lies on the Portuguese mainland.
func IsContinental(lat, lon float64) bool {
	return lat >= 36.8 && lat <= 42.2 && lon >= -9.6 && lon <= -6.1
}

// pickCandidate filters to country, then prefers continental entries and
// larger populations.
func pickCandidate(cs []GeoCandidate, country string) (GeoCandidate, bool) {
	filtered := make([]GeoCandidate, 0, len(cs))
	for _, c := range cs {
		if country == "" || strings.EqualFold(c.CountryCode, country) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return GeoCandidate{}, false
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		ci, cj := IsContinental(filtered[i].Lat, filtered[i].Lon), IsContinental(filtered[j].Lat, filtered[j].Lon)
		if ci != cj {
			return ci
		}
		return filtered[i].Population > filtered[j].Population
	})
	return filtered[0], true
}
