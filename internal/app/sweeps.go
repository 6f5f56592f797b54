package app

// latestTick is a one-slot mailbox that keeps only the newest tick.
type latestTick struct {
	ch chan uint64
}

func newLatestTick() *latestTick {
	return &latestTick{ch: make(chan uint64, 1)}
}

// offer never blocks. A tick still waiting in the slot is replaced.
func (l *latestTick) offer(tick uint64) {
	for {
		select {
		case l.ch <- tick:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}
