package combat

import (
	"sync"

	"graveward/internal/entity"
	"graveward/internal/telemetry"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	commandQueueOccupancyMetricKey = "combat_command_queue_occupancy"
	commandQueueOverflowMetricKey  = "combat_command_queue_overflow_total"
)

// CommandType names the inbound operation a command carries.
type CommandType string

const (
	CommandAttack     CommandType = "attack"
	CommandDisengage  CommandType = "disengage"
	CommandDisconnect CommandType = "disconnect"
	// CommandAction carries a rate-limited eat or flee request.
	CommandAction CommandType = "action"
)

// CommandResult is sent back to the goroutine that staged a command.
type CommandResult struct {
	Verdict Verdict
	Err     error
}

// Command is an inbound operation staged by a network goroutine and applied
// at the start of the next tick.
type Command struct {
	Type    CommandType
	Attack  AttackRequest
	Request Request
	Reply   chan CommandResult
}

func (c Command) actor() entity.ID {
	switch c.Type {
	case CommandAttack:
		return c.Attack.AttackerID
	default:
		return c.Request.EntityID
	}
}

func (c Command) reply(result CommandResult) {
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- result:
	default:
	}
}

// CommandQueue stores staged commands in a fixed-size ring and bounds how
// many commands one actor may stage per tick. It is safe for concurrent
// producers and a single consumer.
type CommandQueue struct {
	mu            sync.Mutex
	data          []Command
	head          int
	tail          int
	count         int
	perActorLimit int
	perActorCount map[entity.ID]int
	dropCounts    map[entity.ID]uint64
	metrics       telemetry.Metrics
}

// NewCommandQueue constructs a queue with the provided capacity.
func NewCommandQueue(capacity, perActorLimit int, metrics telemetry.Metrics) *CommandQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandQueue{
		data:          make([]Command, capacity),
		perActorLimit: perActorLimit,
		perActorCount: make(map[entity.ID]int),
		dropCounts:    make(map[entity.ID]uint64),
		metrics:       metrics,
	}
}

// Capacity reports the maximum number of commands the queue can hold.
func (q *CommandQueue) Capacity() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Push stages a command. On rejection it returns the reason and how many
// commands of the actor were dropped so far.
func (q *CommandQueue) Push(cmd Command) (bool, string, uint64) {
	if q == nil {
		return false, CommandRejectQueueFull, 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	actor := cmd.actor()
	if q.perActorLimit > 0 && actor != 0 && q.perActorCount[actor] >= q.perActorLimit {
		return false, CommandRejectQueueLimit, q.incrementDropLocked(actor)
	}
	if q.count == len(q.data) {
		if q.metrics != nil {
			q.metrics.Add(commandQueueOverflowMetricKey, 1)
		}
		return false, CommandRejectQueueFull, q.incrementDropLocked(actor)
	}
	q.data[q.tail] = cmd
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	if actor != 0 {
		q.perActorCount[actor]++
	}
	q.storeOccupancyLocked()
	return true, "", 0
}

// Drain returns all staged commands in FIFO order, clears the queue and
// resets the per-actor counters.
func (q *CommandQueue) Drain() []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.perActorCount) > 0 {
		clear(q.perActorCount)
	}
	if q.count == 0 {
		return nil
	}
	commands := make([]Command, q.count)
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.data)
		commands[i] = q.data[idx]
		q.data[idx] = Command{}
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	q.storeOccupancyLocked()
	return commands
}

// Len reports the number of staged commands.
func (q *CommandQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *CommandQueue) incrementDropLocked(actor entity.ID) uint64 {
	if actor == 0 {
		return 0
	}
	count := q.dropCounts[actor] + 1
	q.dropCounts[actor] = count
	return count
}

// Forget drops the drop counter of a disconnected actor.
func (q *CommandQueue) Forget(actor entity.ID) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.dropCounts, actor)
}

func (q *CommandQueue) storeOccupancyLocked() {
	if q.metrics == nil {
		return
	}
	q.metrics.Store(commandQueueOccupancyMetricKey, uint64(q.count))
}
