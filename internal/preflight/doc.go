// Package preflight provides readiness checks for the binaries and
// filesystem paths framecut depends on.
//
// The "framecut doctor" command runs RunAll and CheckSystemDeps and prints
// the combined report. The detect command calls CheckStatsDB indirectly by
// opening the same database.
package preflight
