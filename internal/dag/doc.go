// Package dag is a small concurrency-safe dependency graph over string IDs.
// It orders physical steps and nodes, detects cycles and answers dependency
// queries for the step executor.
package dag
