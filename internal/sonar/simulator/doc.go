// Package simulator provides a synthetic multibeam sensor for demos and
// soak tests. It drives a vessel along a gently weaving line over a
// procedural seafloor and emits l1packets.BeamPacket values on a fixed
// cadence, dropping packets when the consumer falls behind.
package simulator
