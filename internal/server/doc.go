// Package server implements the UDP side of the telemetry mock.
//
// A Server answers handshakes, records the single subscriber in a
// state.Session and, from the first subscribe onward, runs one Task that
// advances simulated time on every tick and sends the resulting frame to
// whoever subscribed last. Short datagrams and unknown operations are
// dropped without a reply.
package server
