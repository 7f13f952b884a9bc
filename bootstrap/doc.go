// Package bootstrap wires the SIEM backend together: logger, config,
// SQLite storage, search executor, correlator, ingestion pipeline, and the
// HTTP API, plus the retention loop that ages out old logs.
package bootstrap
