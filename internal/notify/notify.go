package notify

import "github.com/gen2brain/beeep"

// Send shows a desktop notification. Failures are returned so callers can
// log and move on; a rewrite never fails over a notification.
func Send(title, message string) error {
	return beeep.Notify(title, message, "")
}
