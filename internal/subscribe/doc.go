// Package subscribe drives the long-poll subscribe protocol.
//
// The package instantiates the generic engine with a concrete state table
// (Transition) and effect handlers (EffectFactory). A subscription moves
// through handshake, receive and reconnect states; network calls, backoff
// delays and listener fan-out happen in effects, never in the table.
//
// State table summary:
//
//	Unsubscribed --subscriptionChanged--> Handshaking
//	Handshaking --handshakeSuccess--> Receiving
//	Handshaking --handshakeFailure--> HandshakeReconnecting(0)
//	HandshakeReconnecting --failure--> HandshakeReconnecting(n+1)
//	HandshakeReconnecting --giveUp--> HandshakeFailed
//	Receiving --receiveSuccess--> Receiving (next cursor)
//	Receiving --receiveFailure--> ReceiveReconnecting(0)
//	ReceiveReconnecting --giveUp--> ReceiveFailed
//	any live state --disconnect--> HandshakeStopped | ReceiveStopped
//	stopped/failed --reconnect--> Handshaking | Receiving
//	any --unsubscribeAll--> Unsubscribed
//
// Effect results carry the input and cursor (or attempt) they were started
// with, and CanTransition rejects results whose origin no longer matches the
// current state. A receive that completes just after being superseded is
// therefore dropped instead of advancing the new cycle.
package subscribe
