package task

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mrd-project/mrd/pkg/protolog"
)

// Phase is the task manager's overall state.
type Phase uint8

const (
	PhaseStart Phase = iota
	PhaseMapping
	PhaseReducing
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "START"
	case PhaseMapping:
		return "MAPPING"
	case PhaseReducing:
		return "REDUCING"
	case PhaseFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Manager is the coordinator's task manager. All exported methods are
// safe to call from any number of goroutines: each blocks only long
// enough for its operation to run to completion on the manager's single
// internal goroutine.
type Manager struct {
	ops    chan func()
	doneCh chan struct{}

	finalResults map[any]any // written once, only after doneCh closes

	logger      *slog.Logger
	protoLogger protolog.Logger

	reportInterval int

	phase Phase

	datasource map[any]any
	mapOrder   []any
	mapIdx     int

	workingMaps map[any]time.Time
	mapResults  map[any][]any
	mapTotal    int
	mapDone     int
	mapLastPct  int

	reduceOrder    []any
	reduceIdx      int
	workingReduces map[any]time.Time
	results        map[any]any
	reduceTotal    int
	reduceDone     int
	reduceLastPct  int
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger sets the plain operational logger (progress, phase
// transitions). Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithProtoLogger sets the structured protocol-event logger. Defaults to
// protolog.NoopLogger; a nil logger also disables protocol logging.
func WithProtoLogger(logger protolog.Logger) Option {
	return func(m *Manager) {
		if logger == nil {
			logger = protolog.NoopLogger{}
		}
		m.protoLogger = logger
	}
}

// WithReportInterval sets the percentage step at which map/reduce
// progress is logged. 0 disables progress logging.
func WithReportInterval(pct int) Option {
	return func(m *Manager) { m.reportInterval = pct }
}

// New creates a Manager over datasource and starts its goroutine. The
// datasource is iterated in a deterministic order derived by sorting
// keys by their string representation, since map[any]any has no
// intrinsic order.
func New(datasource map[any]any, opts ...Option) *Manager {
	m := &Manager{
		ops:            make(chan func()),
		doneCh:         make(chan struct{}),
		logger:         slog.Default(),
		protoLogger:    protolog.NoopLogger{},
		reportInterval: 10,
		phase:          PhaseStart,
		datasource:     datasource,
		mapOrder:       sortedKeys(datasource),
		workingMaps:    make(map[any]time.Time),
		mapResults:     make(map[any][]any),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	for op := range m.ops {
		op()
	}
}

// call runs fn on the manager's goroutine and blocks until it returns.
func (m *Manager) call(fn func()) {
	done := make(chan struct{})
	m.ops <- func() {
		fn()
		close(done)
	}
	<-done
}

// NextTask asks the manager for the next thing to do. It always returns
// a Task; KindDisconnect means the job is finished.
func (m *Manager) NextTask() Task {
	var t Task
	m.call(func() {
		t = m.nextTaskLocked()
	})
	return t
}

// MapDone reports a completed map assignment. mo may be nil, meaning an
// empty MapOutput.
func (m *Manager) MapDone(key any, mo map[any][]any) {
	m.call(func() {
		m.mapDoneLocked(key, mo)
	})
}

// ReduceDone reports a completed reduce assignment. present=false means
// "drop this key from the results".
func (m *Manager) ReduceDone(key any, value any, present bool) {
	m.call(func() {
		m.reduceDoneLocked(key, value, present)
	})
}

// Done returns a channel closed once the job reaches FINISHED.
func (m *Manager) Done() <-chan struct{} { return m.doneCh }

// Results returns the final results mapping. Only meaningful after Done
// has closed; returns nil before then.
func (m *Manager) Results() map[any]any {
	select {
	case <-m.doneCh:
		return m.finalResults
	default:
		return nil
	}
}

// Status is a point-in-time snapshot of the manager's progress, for
// reporting to an operator console.
type Status struct {
	Phase             Phase
	MapTotal          int
	MapDone           int
	MapOutstanding    int
	ReduceTotal       int
	ReduceDone        int
	ReduceOutstanding int
}

// Status returns a snapshot of the manager's current progress.
func (m *Manager) Status() Status {
	var s Status
	m.call(func() {
		s = Status{
			Phase:             m.phase,
			MapTotal:          m.mapTotal,
			MapDone:           m.mapDone,
			MapOutstanding:    len(m.workingMaps),
			ReduceTotal:       m.reduceTotal,
			ReduceDone:        m.reduceDone,
			ReduceOutstanding: len(m.workingReduces),
		}
	})
	return s
}

func (m *Manager) nextTaskLocked() Task {
	switch m.phase {
	case PhaseStart:
		m.enterMapping()
		return m.nextTaskLocked()

	case PhaseMapping:
		if m.mapIdx < len(m.mapOrder) {
			key := m.mapOrder[m.mapIdx]
			m.mapIdx++
			m.workingMaps[key] = time.Now()
			return Task{Kind: KindMap, Key: key, Value: m.datasource[key]}
		}
		if len(m.workingMaps) > 0 {
			key := oldestLocked(m.workingMaps)
			m.workingMaps[key] = time.Now()
			m.logState("task", "MAPPING", "MAPPING", "reassigned oldest outstanding map task")
			return Task{Kind: KindMap, Key: key, Value: m.datasource[key]}
		}
		m.enterReducing()
		return m.nextTaskLocked()

	case PhaseReducing:
		if m.reduceIdx < len(m.reduceOrder) {
			key := m.reduceOrder[m.reduceIdx]
			m.reduceIdx++
			m.workingReduces[key] = time.Now()
			return Task{Kind: KindReduce, Key: key, Value: m.mapResults[key]}
		}
		if len(m.workingReduces) > 0 {
			key := oldestLocked(m.workingReduces)
			m.workingReduces[key] = time.Now()
			m.logState("task", "REDUCING", "REDUCING", "reassigned oldest outstanding reduce task")
			return Task{Kind: KindReduce, Key: key, Value: m.mapResults[key]}
		}
		m.enterFinished()
		return Task{Kind: KindDisconnect}

	default: // PhaseFinished
		return Task{Kind: KindDisconnect}
	}
}

func (m *Manager) enterMapping() {
	m.phase = PhaseMapping
	m.mapTotal = len(m.mapOrder)
	m.mapLastPct = -1
	m.logState("job", "START", "MAPPING", "")
}

func (m *Manager) enterReducing() {
	m.phase = PhaseReducing
	m.reduceOrder = sortedKeys(mapResultsKeys(m.mapResults))
	m.workingReduces = make(map[any]time.Time)
	m.results = make(map[any]any)
	m.reduceTotal = len(m.reduceOrder)
	m.reduceLastPct = -1
	m.logState("job", "MAPPING", "REDUCING", "")
}

func (m *Manager) enterFinished() {
	m.phase = PhaseFinished
	m.finalResults = m.results
	m.logState("job", "REDUCING", "FINISHED", "")
	close(m.doneCh)
}

func (m *Manager) mapDoneLocked(key any, mo map[any][]any) {
	if _, outstanding := m.workingMaps[key]; !outstanding {
		return
	}
	for k, vs := range mo {
		m.mapResults[k] = append(m.mapResults[k], vs...)
	}
	delete(m.workingMaps, key)

	m.mapDone++
	m.reportProgress("map", m.mapDone, m.mapTotal, &m.mapLastPct)
}

func (m *Manager) reduceDoneLocked(key any, value any, present bool) {
	if _, outstanding := m.workingReduces[key]; !outstanding {
		return
	}
	if present {
		m.results[key] = value
	}
	delete(m.workingReduces, key)

	m.reduceDone++
	m.reportProgress("reduce", m.reduceDone, m.reduceTotal, &m.reduceLastPct)
}

func (m *Manager) reportProgress(phase string, done, total int, lastPct *int) {
	if m.reportInterval <= 0 || total == 0 {
		return
	}
	pct := done * 100 / total
	if pct/m.reportInterval == *lastPct/m.reportInterval && *lastPct >= 0 {
		return
	}
	*lastPct = pct
	m.logger.Info("task progress", "phase", phase, "done", done, "total", total, "pct", pct)
}

func (m *Manager) logState(entity, oldState, newState, reason string) {
	m.logger.Debug("state change", "entity", entity, "old_state", oldState, "new_state", newState)
	m.protoLogger.Log(protolog.Event{
		Timestamp: time.Now(),
		Layer:     protolog.LayerTask,
		Category:  protolog.CategoryState,
		StateChange: &protolog.StateChangeEvent{
			Entity: entity, OldState: oldState, NewState: newState, Reason: reason,
		},
	})
}

// oldestLocked returns the key with the smallest timestamp in m. It is
// only ever called with a non-empty map.
func oldestLocked(m map[any]time.Time) any {
	var oldestKey any
	var oldestAt time.Time
	first := true
	for k, t := range m {
		if first || t.Before(oldestAt) {
			oldestKey, oldestAt = k, t
			first = false
		}
	}
	return oldestKey
}

// sortedKeys returns m's keys ordered by their string representation,
// giving a deterministic iteration order over an unordered map.
func sortedKeys[V any](m map[any]V) []any {
	strs := make([]string, 0, len(m))
	byStr := make(map[string]any, len(m))
	for k := range m {
		s := fmt.Sprintf("%v", k)
		strs = append(strs, s)
		byStr[s] = k
	}
	sort.Strings(strs)

	keys := make([]any, len(strs))
	for i, s := range strs {
		keys[i] = byStr[s]
	}
	return keys
}

func mapResultsKeys(m map[any][]any) map[any]any {
	out := make(map[any]any, len(m))
	for k := range m {
		out[k] = nil
	}
	return out
}
