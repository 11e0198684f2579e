// Package heartbeat keeps an entity's "last seen" instant fresh in a store.
//
// A Recorder writes the current time under one key immediately on Start and
// then once per interval until Stop, which deletes the key so a clean
// shutdown is visible at once. A process that dies without calling Stop
// leaves its key behind: durable stores expire it after their TTL, local
// stores keep it until someone deletes it, and liveness checks report the
// growing age either way.
//
// WorkerLifecycle pairs a recorder with a one-shot ready marker, which is
// the protocol package liveness evaluates:
//
//	lc := heartbeat.NewWorkerLifecycle(heartbeat.LifecycleConfig{
//		Ready: readyStore,
//		Alive: aliveStore,
//	})
//	if err := lc.OnReady(ctx, hostname); err != nil {
//		return err
//	}
//	defer lc.OnShutdown(context.Background(), hostname)
package heartbeat
