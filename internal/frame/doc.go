// Package frame defines decoded frames and the Source contract the detection
// loop pulls them from.
//
// Sources report end of stream with io.EOF so callers can tell a finished
// stream apart from a decode failure. MemorySource is a synthetic in-memory
// implementation used for replaying cached metrics and in tests.
package frame
