// Package models provides the data structures shared by the statement parsers,
// the open-banking adapters and the synchronization engine.
package models
