// Package gateway implements the real-time gateway client: a single WebSocket session that
// reconnects with exponential backoff, keeps itself alive with heartbeats, tracks the event
// sequence and routes inbound events to the message store and notifier.
//
// A Client is driven by Connect and Disconnect; transport callbacks and timers are funneled into
// one serialized handler, so at most one transport and one heartbeat timer are ever live.
package gateway
