// Package l4terrain owns Layer 4 (Terrain) of the sonar data model.
//
// Responsibilities: read-only analysis of a gap-filled depth grid: slope,
// Laplacian feature strength, local data quality and the depth
// distribution. Every derived map carries the pre-fill validity mask, so a
// cell that had no data before filling reports no data in every product.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
package l4terrain
