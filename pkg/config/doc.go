// Package config resolves configuration for both halves of whm2bunny.
//
// The hook CLI resolves HookSettings from WHM2BUNNY_* environment variables
// overlaid by the first readable JSON config file (see HookConfigPaths).
// Missing or malformed files are never fatal; the defaults point the hook at
// a local placeholder endpoint so it is always minimally functional.
//
// The receiver daemon loads ServerConfig from a YAML file plus environment
// overrides, and can watch the file for changes via Watcher.
package config
