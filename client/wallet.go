package client

import "context"

// Wallet is a connected wallet able to sign arbitrary messages.
type Wallet interface {
	// Address is the wallet's public address as sent to the server.
	Address() string
	// Name is the wallet's display name (e.g. "Phantom"); may be empty.
	Name() string
	// SignMessage returns a detached signature over msg. A user rejection is an error.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
	Disconnect(ctx context.Context) error
}

// Notice is delivered to the Notifier after every transition that the user should hear about.
type Notice struct {
	State   State
	Message string
	Err     error
}

// Notifier receives human-readable outcome messages.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
