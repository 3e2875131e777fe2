// Package sim contains the discrete-event simulation core and the experiment
// driver built on top of it.
package sim

import (
	"container/heap"
	"math"
)

// EventTag discriminates the event variants.
type EventTag int

// Event kinds processed by the driver.
const (
	ArrivalBurstStartEvent EventTag = iota
	ArrivalBurstStopEvent
	FormationTriggerEvent
)

// BurstState is the payload of arrival-burst events.
type BurstState struct {
	Service     int
	Duration    float64
	ArrivalRate float64
}

// TriggerState is the payload of coalition-formation trigger events.
type TriggerState struct {
	Start float64
	Stop  float64
}

// Event is a tagged variant: Tag selects which payload field is meaningful.
type Event struct {
	FireTime float64
	Tag      EventTag
	Burst    *BurstState
	Trigger  *TriggerState

	seq uint64 // insertion order, breaks fire-time ties FIFO
}

// eventQueue is a min-heap ordered by fire time, then insertion order.
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].FireTime != q[j].FireTime {
		return q[i].FireTime < q[j].FireTime
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Model supplies the domain behavior driven by the Simulator: lifecycle
// hooks, termination predicates and event processing.
type Model interface {
	InitializeSimulation(s *Simulator) error
	FinalizeSimulation(s *Simulator) error
	InitializeReplication(s *Simulator) error
	FinalizeReplication(s *Simulator) error

	// EndOfReplication lets the model cut a replication short; the queue
	// running dry and the duration cap are handled by the simulator.
	EndOfReplication(s *Simulator) bool

	// EndOfSimulation lets the model stop the whole run; the replication
	// cap is handled by the simulator.
	EndOfSimulation(s *Simulator) bool

	ProcessEvent(s *Simulator, ev *Event) error
}

// Simulator owns the event queue, the simulated clock and the replication
// counters. It is single-threaded: events are processed in non-decreasing
// fire-time order, FIFO among ties.
type Simulator struct {
	maxRepLen float64
	maxNumRep int
	numRep    int
	simTime   float64
	done      bool
	queue     eventQueue
	seq       uint64
}

// New creates a simulator with an unlimited replication budget and a zero
// replication duration; callers configure both before Run.
func New() *Simulator {
	return &Simulator{maxNumRep: math.MaxInt}
}

// SetMaxReplicationDuration bounds the simulated time of each replication.
func (s *Simulator) SetMaxReplicationDuration(v float64) { s.maxRepLen = v }

// MaxReplicationDuration returns the per-replication duration cap.
func (s *Simulator) MaxReplicationDuration() float64 { return s.maxRepLen }

// SetMaxNumReplications bounds the number of replications; 0 means
// unlimited.
func (s *Simulator) SetMaxNumReplications(v int) {
	if v <= 0 {
		s.maxNumRep = math.MaxInt
		return
	}
	s.maxNumRep = v
}

// Now returns the current simulated time.
func (s *Simulator) Now() float64 { return s.simTime }

// NumReplications returns the number of replications started so far.
func (s *Simulator) NumReplications() int { return s.numRep }

// Done reports whether the simulation has finished.
func (s *Simulator) Done() bool { return s.done }

// Schedule enqueues an event at the given fire time.
func (s *Simulator) Schedule(time float64, tag EventTag, burst *BurstState, trigger *TriggerState) {
	ev := &Event{FireTime: time, Tag: tag, Burst: burst, Trigger: trigger, seq: s.seq}
	s.seq++
	heap.Push(&s.queue, ev)
}

// Run drives the model until the simulation ends. Any model error unwinds
// immediately; the caller owns artifact finalization on the error path.
func (s *Simulator) Run(m Model) error {
	s.numRep = 0
	s.simTime = 0
	s.done = false
	if err := m.InitializeSimulation(s); err != nil {
		return err
	}

	for !s.checkEndOfSimulation(m) {
		s.numRep++
		s.simTime = 0
		s.queue = s.queue[:0]
		if err := m.InitializeReplication(s); err != nil {
			return err
		}

		for !s.checkEndOfReplication(m) {
			if err := s.fireEvent(m); err != nil {
				return err
			}
		}

		if err := m.FinalizeReplication(s); err != nil {
			return err
		}
	}

	s.done = true
	return m.FinalizeSimulation(s)
}

func (s *Simulator) checkEndOfReplication(m Model) bool {
	return s.simTime >= s.maxRepLen || len(s.queue) == 0 || m.EndOfReplication(s)
}

func (s *Simulator) checkEndOfSimulation(m Model) bool {
	return s.done || s.numRep >= s.maxNumRep || m.EndOfSimulation(s)
}

func (s *Simulator) fireEvent(m Model) error {
	if len(s.queue) == 0 {
		return nil
	}
	ev := heap.Pop(&s.queue).(*Event)
	s.simTime = ev.FireTime
	return m.ProcessEvent(s, ev)
}
