package catalog

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrInvalidCollection = errors.New("not a GeoJSON feature collection")

type collectionEnvelope struct {
	Features *[]json.RawMessage `json:"features"`
}

type rawFeature struct {
	ID         any                `json:"id"`
	Geometry   json.RawMessage    `json:"geometry"`
	Properties geojson.Properties `json:"properties"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ValidateCollection reports whether data is a JSON object with a features
// array. Feature contents are not inspected.
func ValidateCollection(data []byte) error {
	_, err := decodeEnvelope(data)
	return err
}

func decodeEnvelope(data []byte) ([]json.RawMessage, error) {
	var env collectionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCollection, err)
	}
	if env.Features == nil {
		return nil, fmt.Errorf("%w: missing features array", ErrInvalidCollection)
	}
	return *env.Features, nil
}

// DecodeFeatures turns FeatureCollection bytes into items. Individual
// features that cannot be used are skipped and counted. Only a broken
// envelope produces an error.
func DecodeFeatures(data []byte) ([]Item, LoadStats, error) {
	var stats LoadStats

	features, err := decodeEnvelope(data)
	if err != nil {
		return nil, stats, err
	}

	stats.Features = len(features)
	items := make([]Item, 0, len(features))

	for idx, raw := range features {
		item, ok := decodeFeature(raw, idx)
		if !ok {
			stats.Skipped++
			continue
		}
		items = append(items, item)
	}

	stats.Loaded = len(items)
	return items, stats, nil
}

func decodeFeature(raw json.RawMessage, idx int) (Item, bool) {
	var f rawFeature
	if err := json.Unmarshal(raw, &f); err != nil {
		return Item{}, false
	}

	pt, ok := decodePoint(f.Geometry)
	if !ok {
		return Item{}, false
	}

	props := f.Properties
	if props == nil {
		props = geojson.Properties{}
	}

	item := Item{
		ID:           featureID(props["id"], f.ID, idx),
		Name:         stringProp(props, "name"),
		Link:         cmp.Or(stringProp(props, "link"), stringProp(props, "osm_url")),
		Categories:   categoriesProp(props["categories"]),
		Lat:          pt.Lat(),
		Lng:          pt.Lon(),
		OpenNow:      optionalBool(props, "open_now"),
		LinkOK:       optionalBool(props, "link_ok"),
		Bookable:     props.MustBool("bookable", false),
		Address:      stringProp(props, "address"),
		Addr:         addressProp(props),
		OpeningHours: stringProp(props, "opening_hours"),
	}
	item.prepare()

	return item, true
}

// decodePoint accepts any geometry with coordinates. Non-point geometries
// are reduced to the center of their bounds.
func decodePoint(data json.RawMessage) (orb.Point, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return orb.Point{}, false
	}

	var probe rawGeometry
	if err := json.Unmarshal(data, &probe); err != nil {
		return orb.Point{}, false
	}
	coords := bytes.TrimSpace(probe.Coordinates)
	if len(coords) == 0 || bytes.Equal(coords, []byte("null")) {
		return orb.Point{}, false
	}
	if probe.Type == "Point" {
		var pair []float64
		if err := json.Unmarshal(coords, &pair); err != nil || len(pair) < 2 {
			return orb.Point{}, false
		}
	}

	geometry, err := geojson.UnmarshalGeometry(data)
	if err != nil || geometry.Coordinates == nil {
		return orb.Point{}, false
	}

	var pt orb.Point
	switch g := geometry.Coordinates.(type) {
	case orb.Point:
		pt = g
	default:
		bound := g.Bound()
		if bound.IsEmpty() {
			return orb.Point{}, false
		}
		pt = bound.Center()
	}

	if !isFinite(pt.Lat()) || !isFinite(pt.Lon()) {
		return orb.Point{}, false
	}
	return pt, true
}

func featureID(propID, topID any, idx int) string {
	if id := scalarString(propID); id != "" {
		return id
	}
	if id := scalarString(topID); id != "" {
		return id
	}
	return "feature/" + strconv.Itoa(idx)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func stringProp(props geojson.Properties, key string) string {
	return scalarString(props[key])
}

func optionalBool(props geojson.Properties, key string) *bool {
	if v, ok := props[key].(bool); ok {
		return boolPtr(v)
	}
	return nil
}

func categoriesProp(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, c := range t {
			if s := scalarString(c); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

// addressProp reads the nested "addr" object, falling back to flat
// OSM-style "addr:*" keys.
func addressProp(props geojson.Properties) Address {
	var addr Address
	if nested, ok := props["addr"].(map[string]any); ok {
		addr = Address{
			Street:      scalarString(nested["street"]),
			Housenumber: scalarString(nested["housenumber"]),
			Postcode:    scalarString(nested["postcode"]),
			City:        scalarString(nested["city"]),
		}
	}
	if addr.IsZero() {
		addr = Address{
			Street:      stringProp(props, "addr:street"),
			Housenumber: stringProp(props, "addr:housenumber"),
			Postcode:    stringProp(props, "addr:postcode"),
			City:        stringProp(props, "addr:city"),
		}
	}
	return addr
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
