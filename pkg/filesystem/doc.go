// Package filesystem provides implementations of the types.FS interface.
//
// NewOS returns the production implementation backed by the os package.
// NewAferoFS wraps any afero.Fs, which lets tests run the catalog, state
// serializer and engine against an in-memory filesystem.
package filesystem
