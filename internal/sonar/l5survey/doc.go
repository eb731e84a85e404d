// Package l5survey owns Layer 5 (Survey) of the sonar data model.
//
// Responsibilities: the bounded vessel Track, the per-packet DepthTrend
// history and the SurveyStatistics aggregated from a grid snapshot and a
// track.
//
// Dependency rule: L5 may depend on L1-L4.
package l5survey
