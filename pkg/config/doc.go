// Package config loads Pool resource files: a small YAML convention
// (apiVersion/kind/metadata/spec) that externalizes a Pool's cache mode,
// lock-acquire timeout, and expected scope/dependency layout. It is pure
// configuration plumbing, it has no opinion on how a Pool's scopes
// are actually constructed, only on what settings a deployment wants
// applied to one once it exists.
package config
