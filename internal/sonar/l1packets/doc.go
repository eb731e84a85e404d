// Package l1packets owns Layer 1 (Packets) of the sonar data model.
//
// Responsibilities: the BeamPacket value type produced by a sensor source
// and its structural validation. One packet is one multibeam ping: the
// vessel position plus parallel per-beam angle and slant-range arrays.
//
// Dependency rule: L1 has no inward dependencies on higher layers.
package l1packets
