// Package server provides HTTP routing, middleware, and the JSON API for the footprint tracker.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally. Routes are registered as
// "METHOD /path/{wildcard}" patterns, so the mux answers 405 for a known path with the wrong method.
//
// # Middleware
//
//   - [RecoverMiddleware] turns panics into a JSON 500
//   - [LoggingMiddleware] logs method, path, status and duration
//   - [MetricsMiddleware] feeds http_requests_total and http_request_duration_seconds
//
// # JSON API
//
//	POST   /api/login
//	GET    /api/search?q=&limit=
//	GET    /api/users/{user}/cities
//	GET    /api/users/{user}/cities/{city}
//	PUT    /api/users/{user}/cities/{city}
//	DELETE /api/users/{user}/cities/{city}
//	POST   /api/users/{user}/cities/{city}/photos/{category}
//	DELETE /api/users/{user}/cities/{city}/photos/{category}
//	GET    /api/users/{user}/stats
//	GET    /api/users/{user}/map?mode=&theme=
//	GET    /api/users/{user}/snapshot?mode=&theme=
//	POST   /api/users/{user}/export?mode=&theme=
//	GET    /metrics
//
// Errors are written as {"error": "..."} with a status derived from the sentinel in the error chain
// (see [StatusFor]).
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// The static asset handler in internal/web is registered this way.
package server
