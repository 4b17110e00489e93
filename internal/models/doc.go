// Package models defines domain entities and persistence interfaces for footprint, a personal city-visit tracker.
//
// The package contains two categories of types:
//
// 1. Persistent Entities: Database-backed models
//   - [User] : A traveler identified by a unique display name (login is find-or-create)
//   - [VisitedCity] : A city the user has marked, keyed by (user, city name), with visit date, rating and comment
//   - [Photo] : One photo per [Category] attached to a visited city
//
// 2. Requests: Boundary structs validated before they reach a repository
//   - [LoginRequest] : Username for find-or-create login
//   - [SaveCityRequest] : Upsert payload whose optional fields leave stored values untouched when nil
//   - [PhotoInput] : Category and URL of an uploaded photo
//
// [User] implements the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
