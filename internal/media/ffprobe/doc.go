// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe once; Prober memoizes results per file so repeated
// probes of the same video during one process skip the subprocess. Result
// helpers expose the frame rate, the frame count and the container metadata
// the detect pipeline needs to size its run.
package ffprobe
