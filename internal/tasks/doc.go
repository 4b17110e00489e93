// Package tasks orchestrates footprint operations on top of the stores, the uploader and the renderers.
//
// # Core Operations
//
//  1. [Tracker] : marking, editing and unmarking visited cities
//     - Login finds or creates a user by name
//     - Save validates the city against the dataset before upserting
//     - Upload sends the photo to the [services.Uploader] first and only persists the returned URL
//
//  2. [ExportEngine.Export] : the PDF export pipeline
//     - Loads the user's cities, keeps those with photos and sorts them newest first
//     - Renders the map snapshot and loads the document font (optional)
//     - Fetches and decodes photos with a small worker pool, preserving sorted order
//     - Paginates, renders and optionally writes the document
//
// # Progress Reporting
//
// Exports report progress over a channel with non-blocking sends. The [ProgressUpdate] struct contains
// the phase, step counters, an overall percentage and a message. Updates are advisory; a full channel
// drops them.
//
// Only one export runs at a time per engine; a concurrent call fails with [shared.ErrExportInProgress].
package tasks
