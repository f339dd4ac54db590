// Package channel abstracts the outbound messaging surface.
//
// The engine only knows this interface; the concrete adapter talks to a
// WhatsApp gateway over HTTP. Session management, QR pairing and reconnects
// are the gateway's problem, not this process's.
package channel

import "context"

// Channel delivers messages to one recipient at a time.
type Channel interface {
	// Ready reports whether the underlying session can deliver right now.
	Ready(ctx context.Context) (bool, error)
	// SendText delivers a plain text message to the given E.164 number.
	SendText(ctx context.Context, to, text string) error
	// SendMedia delivers a local file with an optional caption.
	SendMedia(ctx context.Context, to, path, mimeType, caption string) error
}
