// Package testsupport holds helpers shared by package tests: temp-dir
// configs, stub executables on PATH and throwaway media files.
package testsupport
