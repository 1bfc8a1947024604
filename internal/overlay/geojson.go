package overlay

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports the overlay as GeoJSON: one LineString per
// polyline plus a "camera" Point when the route could be framed
func (o Overlay) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, line := range o.Polylines {
		ls := make(orb.LineString, 0, len(line.Points))
		for _, c := range line.Points {
			ls = append(ls, toPoint(c))
		}

		f := geojson.NewFeature(ls)
		f.Properties["kind"] = "leg"
		f.Properties["mode"] = string(line.Mode)
		f.Properties["color"] = line.Color.Hex
		f.Properties["style"] = string(line.Style)
		f.Properties["width"] = line.Width
		if line.LineID != "" {
			f.Properties["line"] = line.LineID
		}
		if len(line.DashPattern) > 0 {
			f.Properties["dash_pattern"] = line.DashPattern
		}
		fc.Append(f)
	}

	if o.Camera != nil {
		f := geojson.NewFeature(toPoint(o.Camera.Center))
		f.Properties["kind"] = "camera"
		f.Properties["zoom"] = o.Camera.Zoom
		f.BBox = geojson.NewBBox(orb.Bound{Min: toPoint(o.Camera.Min), Max: toPoint(o.Camera.Max)})
		fc.Append(f)
	}

	return fc
}
