// Package transport delivers channel messages and service calls to the node.
//
// The Bus is the event loop. Publishers (the HTTP bridge, in-process code,
// handlers themselves) only enqueue envelopes; Spin drains the queue on a
// single goroutine and runs every subscribed handler to completion before the
// next envelope is taken. Handlers therefore never overlap and never re-enter,
// and state owned by subscribers needs no locking.
//
// Key properties:
//   - One FIFO for all channels: per-channel order is preserved, cross-channel
//     order is arrival order at the queue and carries no meaning
//   - Publish is fire-and-forget: a full queue drops the message
//   - Payloads are JSON; Subscribe decodes into the channel's message type and
//     drops envelopes that do not decode
//   - Service calls run synchronously on the caller's goroutine, either against
//     handlers advertised on the Bus or a remote controller over HTTP
//
// Error handling:
//   - Queue full → ErrQueueFull from PublishRaw, warn log from Publish
//   - Undecodable payload → warn log, handler not invoked
//   - Unknown service → ErrServiceNotFound
package transport
