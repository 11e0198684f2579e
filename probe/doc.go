// Package probe checks workers end to end over NATS.
//
// PingChecker broadcasts a ping and classifies every worker that answers
// within a window. QueueChecker pushes a small arithmetic task through each
// configured queue and requires the right answer back. Responder is the
// worker side of both protocols.
//
// Subjects:
//
//	<ping subject>            broadcast; every worker replies
//	<queue prefix>.<queue>    queue group; one worker per queue replies
package probe
