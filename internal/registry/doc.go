// Package registry provides the central "glue" for the module system.
//
// The Registry stores mappings between the handler names used in operation
// manifests (e.g., "NewRegexSplit") and the compiled Go constructors that
// implement them. It also holds the parsed, format-agnostic manifests.
//
// During application startup, the registry is populated and then validated
// to ensure that the Go code and the manifests are perfectly in sync, which
// turns a wide class of flow errors into startup errors.
package registry
