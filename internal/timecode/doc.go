// Package timecode provides the frame-exact position type shared by frame
// sources, detectors, and scene lists.
package timecode
