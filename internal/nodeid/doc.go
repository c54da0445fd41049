/*
Package nodeid addresses the units of a physical plan.

An address is a dot-separated path of segments, each optionally indexed:

	wordcount.step[0].node[1].pipeline[0]

The flow name is the first segment; steps, nodes and pipelines follow in
that order. Parse and String round-trip.
*/
package nodeid
