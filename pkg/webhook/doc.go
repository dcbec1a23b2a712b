// Package webhook receives signed lifecycle events from the control panel
// hook and hands them to the provisioner.
//
// Requests are authenticated with an HMAC-SHA256 signature over the raw
// body. Accepted events are processed asynchronously; the handler responds
// 202 with a tracking ID as soon as the payload is validated.
package webhook
