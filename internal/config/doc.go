// Package config defines the format-agnostic model of a flow description and
// of the operation manifests, along with the core interfaces (Loader,
// Converter) for loading and interpreting them.
//
// The `config.Model` is the single source of truth for the `assembly`
// package. Concrete implementations of the interfaces, such as for HCL, are
// provided in separate packages.
package config
