// Package validation checks domain names, subdomain labels, and related
// settings before provisioning touches external APIs.
//
// Format checks follow RFC 1035: labels of letters, digits, and interior
// hyphens, at most 63 characters each, with the whole name capped at 253
// characters and a non-numeric TLD. Optional DNS resolution checks confirm a
// domain actually resolves, but never fail validation on their own since a
// control panel may fire hooks before DNS has propagated.
package validation
