// Package geodata prepares geospatial datasets for registration.
//
// Uploaded files land in a workspace directory. CSV uploads are cleaned and
// converted to JSON, encryption produces an envelope, a metadata document and
// a sealed key next to the source file, and Hashes derives the cipher and
// metadata hashes that a record in the record store refers to.
package geodata
