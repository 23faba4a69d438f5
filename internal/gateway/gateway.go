package gateway

import "log"

// Notifier defines the interface for outbound alert gateways
// (Telegram, Discord, etc.). Notifiers are one-way: the sync core
// pushes messages out and never listens.
type Notifier interface {
	// Name identifies the gateway in logs
	Name() string
	// Send pushes a message to the configured chat/channel
	Send(text string) error
	// Close gracefully shuts down the gateway
	Close() error
}

// NotifyAll fans a message out to every gateway, logging failures
// instead of propagating them: an unreachable notifier must never fail
// a sync run.
func NotifyAll(notifiers []Notifier, text string) {
	for _, n := range notifiers {
		if err := n.Send(text); err != nil {
			log.Printf("Error sending %s notification: %v", n.Name(), err)
		}
	}
}
