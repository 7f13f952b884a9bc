// Package core contains the domain model shared across the SIEM backend:
// log records, alerts, cases with their observables and comments, hosts,
// and alert rules, together with the validation each entity enforces.
package core
