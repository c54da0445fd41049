// Package cli turns command-line arguments into an app.Config. Invalid
// input becomes an ExitError carrying the process exit code.
package cli
