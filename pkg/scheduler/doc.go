// Package scheduler runs the recurring Telegram reports: a daily traffic
// summary, a weekly summary with week-over-week comparison, and an hourly
// bandwidth spike check.
package scheduler
