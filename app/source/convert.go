package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/database"
)

// PlacesToFeatureCollection encodes places with coordinates as GeoJSON.
// Places without coordinates are left out.
func PlacesToFeatureCollection(places []database.Place, now time.Time) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	for _, p := range places {
		if p.Lat == nil || p.Lon == nil {
			continue
		}

		f := geojson.NewFeature(orb.Point{*p.Lon, *p.Lat})
		f.Properties["id"] = p.ID
		f.Properties["name"] = p.Name
		f.Properties["categories"] = nonNil(p.Categories)
		f.Properties["bookable"] = p.Bookable

		if p.Website != "" {
			f.Properties["link"] = p.Website
		}
		if p.Address != "" {
			f.Properties["address"] = p.Address
		}
		addr := catalog.Address{Street: p.Street, Housenumber: p.Housenumber, Postcode: p.Postcode, City: p.City}
		if !addr.IsZero() {
			f.Properties["addr"] = addr
		}
		if p.OpeningHours != "" {
			f.Properties["opening_hours"] = p.OpeningHours
			if open := catalog.IsOpenAt(p.OpeningHours, now); open != nil {
				f.Properties["open_now"] = *open
			}
		}
		if p.LinkOK != nil {
			f.Properties["link_ok"] = *p.LinkOK
		}
		if p.Description != "" {
			f.Properties["description"] = p.Description
		}
		if p.ImageURL != "" {
			f.Properties["image"] = p.ImageURL
		}
		if p.Phone != "" {
			f.Properties["phone"] = p.Phone
		}

		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode feature collection: %w", err)
	}
	return data, nil
}

type seedFeature struct {
	Geometry *struct {
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
	Properties geojson.Properties `json:"properties"`
}

// PlacesFromCollection extracts database rows from a FeatureCollection.
// Features without a properties id are ignored; coordinates are optional.
func PlacesFromCollection(data []byte) ([]database.Place, error) {
	var env struct {
		Features *[]json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrInvalidCollection, err)
	}
	if env.Features == nil {
		return nil, fmt.Errorf("%w: missing features array", catalog.ErrInvalidCollection)
	}

	places := make([]database.Place, 0, len(*env.Features))
	for _, raw := range *env.Features {
		var f seedFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		props := f.Properties
		if props == nil {
			continue
		}

		id := propString(props["id"])
		if id == "" {
			continue
		}

		website := propString(props["link"])
		if website == "" {
			website = propString(props["osm_url"])
		}
		categories := propStrings(props["categories"])

		p := database.Place{
			ID:           id,
			Name:         catalog.EnsureName(propString(props["name"]), categories, website),
			Website:      website,
			Address:      propString(props["address"]),
			Categories:   categories,
			Bookable:     props.MustBool("bookable", false) || catalog.IsBookingURL(website),
			OpeningHours: propString(props["opening_hours"]),
		}
		if addr, ok := props["addr"].(map[string]any); ok {
			p.Street = propString(addr["street"])
			p.Housenumber = propString(addr["housenumber"])
			p.Postcode = propString(addr["postcode"])
			p.City = propString(addr["city"])
		}
		if f.Geometry != nil {
			var coords []float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err == nil && len(coords) >= 2 {
				p.Lon, p.Lat = &coords[0], &coords[1]
			}
		}

		places = append(places, p)
	}

	return places, nil
}

func propString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func propStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := propString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
