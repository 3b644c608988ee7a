// Package scheduler arms one deferred callback per alarm and notifies
// subscribers when an alarm fires.
//
// Callbacks never sleep longer than a configured cap (60s by default), so
// NTP steps, DST transitions and system sleep are noticed within a minute.
// Every wake-up re-checks the due instant against the clock instead of
// trusting delivery time, and Recover fires anything whose due instant has
// already passed. The scheduler is not safe for concurrent use; it expects
// every call and callback to run on the application loop.
package scheduler
