// Package competition holds the node's session logic: the start handshake,
// the state aggregator fed by the competition channels, the threshold
// detectors and the arm command issuer.
//
// Concurrency model:
//   - StartCompetition runs to completion before the bus loop starts
//   - Every Handle* method is invoked by transport.Bus on its single dispatch
//     goroutine, one message at a time, each running to completion
//   - Competition therefore keeps its state in plain fields with no mutex and
//     no atomics. Do not call Handle* methods from other goroutines and do not
//     add parallel dispatch; doing so would break the zero-pose latch
//
// One-shot trigger: the first joint state message sets the zeroed latch and
// publishes the zero-pose arm command inside the same handler call. The latch
// never resets, so the command is never retried even if the publish was
// dropped.
package competition
