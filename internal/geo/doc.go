// Package geo holds the city boundary dataset and everything that styles it.
//
// The dataset is a GeoJSON feature collection whose features carry a "name" property.
// [Style] is the single styling function used both by the live map API and by the
// off-screen [Snapshotter], so the cover image of an export matches what the user sees.
package geo
