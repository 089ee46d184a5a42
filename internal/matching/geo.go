package matching

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
)

// earthRadiusKm is the IUGG mean Earth radius.
const earthRadiusKm = 6371.0088

// haversineKm returns the great-circle distance between two points, rounded
// to 0.1 km.
func haversineKm(a, b vocabulary.City) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	d := 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
	return math.Round(d*10) / 10
}

// resolveCity finds the centroid for a document, preferring the stored
// canonical key over the raw city text.
func resolveCity(v *vocabulary.Vocabulary, doc *talent.Document) (vocabulary.City, bool) {
	if doc.CityCanonical != "" {
		if c, ok := v.CityByKey(doc.CityCanonical); ok {
			return c, true
		}
	}
	if doc.City != "" {
		return v.City(doc.City)
	}
	return vocabulary.City{}, false
}

// distanceComponent is 1 at zero distance and falls linearly to 0 at
// maxKm. A zero maxKm disables the component.
func distanceComponent(distanceKm float64, resolved bool, maxKm float64) float64 {
	if maxKm <= 0 {
		return 1
	}
	if !resolved {
		return 0
	}
	return math.Max(0, 1-distanceKm/maxKm)
}
