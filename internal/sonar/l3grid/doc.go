// Package l3grid owns Layer 3 (Grid) of the sonar data model.
//
// Responsibilities: the DepthGrid cell store and its validity mask, the
// beam-to-cell GridMapper, the incremental GridUpdater, the GapFiller used
// before analysis, and the snapshot codec used for persistence.
//
// The grid covers one square tile. Vessel and beam positions are reduced
// modulo the tile side before indexing, so a vessel that travels further
// than one tile revisits the same cells. This is a local survey aid, not a
// georeferenced map.
//
// Dependency rule: L3 may depend on L1, but never on L4+.
// No SQL/database code is allowed in this package.
package l3grid
