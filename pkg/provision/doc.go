// Package provision orchestrates Bunny.net resource creation for domains
// and subdomains coming out of control panel hooks.
//
// A domain run walks four steps: create the DNS zone, add its records,
// create the CDN pull zone, and point the zone at the CDN hostname. Each
// completed step is persisted, so a crashed or failed run resumes where it
// stopped instead of repeating API calls that already succeeded.
package provision
