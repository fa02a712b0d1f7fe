// Package sinks holds audit sinks that publish goSession audit events to
// external systems.
package sinks
