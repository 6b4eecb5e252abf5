// Package wire decodes long-poll subscribe responses.
//
// A response is a JSON envelope holding the next cursor and an ordered list
// of envelopes, one per message:
//
//	{"t": {"t": "17000000000000000", "r": 12},
//	 "m": [{"a": "4", "e": 0, "c": "chat", "i": "alice",
//	        "p": {"t": "16999999999999999", "r": 12}, "d": {...}}]}
//
// The "e" field selects the message type; messages on "-pnpres" channels
// are presence events regardless of "e".
package wire
