// Package manifest handles parsing and validation of extension manifests
// (extension.yaml). Manifests are validated against an embedded JSON Schema
// before any entry point they declare is instantiated.
package manifest
