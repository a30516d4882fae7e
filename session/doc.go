// Package session implements the serial session manager: the component that
// owns a transport while connected, turns the incoming byte stream into
// lines, serializes outgoing commands and tears everything down exactly once,
// whoever asks.
//
// # Lifecycle
//
// A Session cycles through Disconnected, Connecting, Connected and
// Disconnecting. Create one with New and keep it for the life of the
// process; every Connect obtains a fresh Transport from the Provider.
//
//	s := session.New(provider, sink, session.WithLogger(logger))
//	if err := s.Connect(ctx, 115200); err != nil {
//	    // errors.Is(err, session.ErrPortSelectionCancelled), ...
//	}
//	defer s.Disconnect()
//
//	err := s.Send(ctx, "AT+INFO") // "AT+INFO\r\n" on the wire
//
// # Teardown
//
// Teardown is triggered by Disconnect, by the transport reporting that the
// device was removed, or by a read or write failure. All three go through
// the same idempotent routine: the state becomes Disconnecting, the
// in-flight read is cancelled, the write side released, the transport
// closed, the line buffer cleared, and the state becomes Disconnected
// before the sink hears the DisconnectReason.
//
// # Lines
//
// Incoming bytes are split on '\n' by a LineBuffer. Lines are decoded after
// reassembly, so multi-byte characters may be split across reads. Carriage
// returns are passed through untouched; stripping them is up to the Sink.
package session
