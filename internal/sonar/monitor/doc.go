// Package monitor serves a debugging HTTP interface over a running survey:
// JSON endpoints for the grid, track, statistics and analyses, an echarts
// depth heatmap, and the SQL console of the snapshot database.
package monitor
