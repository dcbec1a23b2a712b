// Package notify sends provisioning notifications to a Telegram chat.
//
// The notifier is a no-op when Telegram is not configured, so callers never
// need to branch on whether notifications are enabled.
package notify
