package mqtt

import "log"

// inboundMsg is a received message waiting for ServiceIncoming.
type inboundMsg struct {
	topic   string
	payload []byte
}

// inboundQueue holds messages between the paho callback goroutine and the
// control loop. When full, the oldest message is dropped.
// Not safe for concurrent use; RealSession guards it with its mutex.
type inboundQueue struct {
	ring    []inboundMsg
	next    int // slot for the next push
	n       int
	dropped int // total messages dropped since creation
	warned  bool
}

func newInboundQueue(size int) *inboundQueue {
	return &inboundQueue{ring: make([]inboundMsg, size)}
}

func (q *inboundQueue) push(msg inboundMsg) {
	q.ring[q.next] = msg
	q.next = (q.next + 1) % len(q.ring)
	if q.n < len(q.ring) {
		q.n++
		return
	}
	q.dropped++
	if !q.warned {
		log.Printf("mqtt: inbound queue full (%d messages), dropping oldest", len(q.ring))
		q.warned = true
	}
}

// drain returns the queued messages oldest first and empties the queue.
func (q *inboundQueue) drain() []inboundMsg {
	if q.n == 0 {
		return nil
	}
	out := make([]inboundMsg, 0, q.n)
	first := (q.next - q.n + len(q.ring)) % len(q.ring)
	for i := 0; i < q.n; i++ {
		out = append(out, q.ring[(first+i)%len(q.ring)])
	}
	q.n = 0
	q.next = 0
	q.warned = false
	return out
}

func (q *inboundQueue) len() int {
	return q.n
}
