// Package types contains the core domain types shared across hudman:
// HUD descriptors and installation records, the filesystem interface the
// engine operates through, and the typed events the engine emits to its
// callers.
//
// This package has no dependencies on other hudman packages so that every
// component can import it without cycles.
package types
