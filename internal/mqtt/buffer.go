package mqtt

import "log"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds messages published while disconnected, oldest first.
// A retained message replaces an earlier retained message on the same topic,
// so a flapping cell costs one slot. When full the oldest entry is lost.
// Not safe for concurrent use; the caller synchronizes.
type ringBuffer struct {
	buf       []bufferedMsg
	capacity  int
	head      int // next write position
	count     int
	dropped   int
	coalesced int
	warned    bool // full warning logged since last drain
	logger    *log.Logger
}

func newRingBuffer(capacity int, logger *log.Logger) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

func (r *ringBuffer) slot(i int) int {
	return (r.head - r.count + i + r.capacity) % r.capacity
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if msg.retained {
		for i := 0; i < r.count; i++ {
			j := r.slot(i)
			if r.buf[j].retained && r.buf[j].topic == msg.topic {
				r.buf[j] = msg
				r.coalesced++
				return
			}
		}
	}

	if r.count == r.capacity {
		if !r.warned && r.logger != nil {
			r.logger.Printf("mqtt: buffer full (%d messages), dropping oldest", r.capacity)
		}
		r.warned = true
		r.dropped++
		// head is the oldest entry when full
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	out := make([]bufferedMsg, r.count)
	for i := range out {
		j := r.slot(i)
		out[i] = r.buf[j]
		r.buf[j] = bufferedMsg{}
	}
	r.count = 0
	r.head = 0
	r.warned = false
	return out
}

func (r *ringBuffer) len() int { return r.count }
