// Package state tracks provisioning records for domains and subdomains.
//
// Records are held in memory and persisted to a single JSON file so that
// interrupted provisioning runs can be resumed after a restart.
package state
