package core

// Frame is a raw encoded payload ready for the wire.
type Frame []byte

// ConnID identifies one transport session. It is minted at accept time
// and never reused; user identity attaches to it later, on authenticate.
type ConnID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
