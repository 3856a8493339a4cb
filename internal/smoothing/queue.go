package smoothing

import "github.com/coreman2200/ledsmooth/internal/colorframe"

// OutputQueue delays computed frames by a fixed number of ticks before they
// reach the sink. With depth d, a frame pushed on tick n is written on tick
// n+d.
type OutputQueue struct {
	frames []colorframe.Frame
	depth  int
}

func NewOutputQueue(depth int) *OutputQueue {
	q := &OutputQueue{}
	q.SetDepth(depth)
	return q
}

func (q *OutputQueue) Depth() int { return q.depth }
func (q *OutputQueue) Len() int   { return len(q.frames) }

// SetDepth changes the delay. Frames beyond the new depth are discarded,
// oldest first.
func (q *OutputQueue) SetDepth(depth int) {
	if depth < 0 {
		depth = 0
	}
	q.depth = depth
	if over := len(q.frames) - depth; over > 0 {
		q.frames = append(q.frames[:0:0], q.frames[over:]...)
	}
}

func (q *OutputQueue) Push(f colorframe.Frame) {
	q.frames = append(q.frames, f)
}

// Pop removes and returns the head.
func (q *OutputQueue) Pop() (colorframe.Frame, bool) {
	if len(q.frames) == 0 {
		return nil, false
	}
	head := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return head, true
}

// Cycle pushes f and pops the head once the queue holds more than depth
// frames. It is the per-tick step of continuous output.
func (q *OutputQueue) Cycle(f colorframe.Frame) (colorframe.Frame, bool) {
	q.Push(f)
	if len(q.frames) > q.depth {
		return q.Pop()
	}
	return nil, false
}

// Clear discards every queued frame and returns how many were dropped.
func (q *OutputQueue) Clear() int {
	n := len(q.frames)
	q.frames = nil
	return n
}
