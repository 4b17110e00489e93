// Package services wraps the external collaborators footprint talks to over the network.
//
// Key Implementations:
//   - [Uploader] : media upload for city photos ([CloudinaryUploader], [S3Uploader], [NoopUploader])
//   - [AssetClient] : rate-limited fetching of static assets (city dataset, font) and photo bytes
//
// [DecodeDataURI] parses "data:<mime>;base64,<payload>" strings so uploads and assets may be inlined.
package services
