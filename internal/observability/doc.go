// Package observability records pipeline events to a JSON Lines log,
// derives throughput metrics from it, and raises alerts from the status
// board and the log.
package observability
