// Package internaldefs holds the metric names, help strings and bucket bounds shared by the
// exporters, so that the Prometheus and OTel outputs stay identical.
//
// It performs no I/O and imports no exporter package.
package internaldefs
