// Package monitor turns a stream of fleet events into observations.
//
// A Camera buffers the task and worker names seen in events and, every
// Freq, writes the current time for each of them into a durable store. A
// window without events writes nothing, so observations expire through the
// store's TTL once the fleet goes quiet. Real-time staleness checks read
// what the camera writes.
//
// Camera.Run keeps the event subscription alive under resilience.Supervise:
// a broken subscription is reopened with backoff until the context ends.
package monitor
