// Package detect drives pluggable scene detectors over a frame source and
// assembles their events into scene and cut lists.
//
// A Manager owns the event ledger for its lifetime. DetectScenes pulls frames,
// skips decoding when every detector's metrics are already cached in the
// attached MetricStore, subsamples frames by the downscale factor, and
// dispatches each frame to the registered detectors in order. SceneList and
// CutList read the ledger; TransformEventsToCuts is the only operation that
// rewrites it.
package detect
