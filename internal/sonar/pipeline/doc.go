// Package pipeline wires the sonar layers into a running survey engine.
//
// The Engine is the single writer of the depth grid and track: it consumes
// beam packets one at a time, and serialises filter installs, loads and
// resets with packet application. Readers get copies through the accessor
// methods and may run analyses concurrently with ingestion.
package pipeline
