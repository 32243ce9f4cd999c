package trigger

import (
	"sort"

	"github.com/RuiFG/streaming-trigger/window"
)

// Cell is the execution state of one node of a trigger tree.
type Cell struct {
	Finished bool
	// Count of elements, used by AfterPane.
	Count int64
	// Index of the active sub-trigger, used by AfterEach.
	Index int64
	// TimerSet, FiringTime and Expired track the processing-time timer of AfterProcessingTime.
	TimerSet   bool
	FiringTime int64
	Expired    bool
}

func (c Cell) IsZero() bool {
	return c == Cell{}
}

// State is the execution state of a trigger tree for one key and window.
type State struct {
	cells map[string]Cell
	dirty map[string]struct{}
}

func NewState() *State {
	return &State{cells: map[string]Cell{}, dirty: map[string]struct{}{}}
}

// Load installs a cell read back from storage without marking it dirty.
func (s *State) Load(path string, cell Cell) {
	if cell.IsZero() {
		delete(s.cells, path)
		return
	}
	s.cells[path] = cell
}

// Cell returns the cell at path, the zero Cell when absent.
func (s *State) Cell(path string) Cell {
	return s.cells[path]
}

func (s *State) set(path string, cell Cell) {
	if s.cells[path] == cell {
		return
	}
	if cell.IsZero() {
		delete(s.cells, path)
	} else {
		s.cells[path] = cell
	}
	s.dirty[path] = struct{}{}
}

// Paths lists the paths holding a non zero cell, sorted.
func (s *State) Paths() []string {
	paths := make([]string, 0, len(s.cells))
	for path := range s.cells {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Dirty lists the paths changed since the last ResetDirty, sorted.
func (s *State) Dirty() []string {
	paths := make([]string, 0, len(s.dirty))
	for path := range s.dirty {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (s *State) ResetDirty() {
	s.dirty = map[string]struct{}{}
}

// MarkTimerExpired records that the processing-time timer requested by the
// node at id has fired. It reports false when that node has no pending timer.
func (s *State) MarkTimerExpired(id string) bool {
	cell, ok := s.cells[id]
	if !ok || !cell.TimerSet || cell.Expired {
		return false
	}
	cell.Expired = true
	s.set(id, cell)
	return true
}

// Context is the view of one trigger node over the execution state of a window.
type Context struct {
	window         window.Window
	watermark      int64
	processingTime int64
	state          *State
	timers         Timers
	path           string
}

// NewContext builds the root context for evaluating a trigger tree.
// timers may be nil when no timer can be requested, as in ShouldFire.
func NewContext(w window.Window, watermark, processingTime int64, state *State, timers Timers) *Context {
	return &Context{
		window:         w,
		watermark:      watermark,
		processingTime: processingTime,
		state:          state,
		timers:         timers,
		path:           RootPath,
	}
}

func (c *Context) Window() window.Window {
	return c.window
}

func (c *Context) Watermark() int64 {
	return c.watermark
}

func (c *Context) ProcessingTime() int64 {
	return c.processingTime
}

func (c *Context) Path() string {
	return c.path
}

// Finished reports whether the node of this context can never fire again.
func (c *Context) Finished() bool {
	return c.state.Cell(c.path).Finished
}

func (c *Context) child(i int) *Context {
	sub := *c
	sub.path = childPath(c.path, i)
	return &sub
}

func (c *Context) cell() Cell {
	return c.state.Cell(c.path)
}

func (c *Context) setCell(cell Cell) {
	c.state.set(c.path, cell)
}

func (c *Context) setFinished(finished bool) {
	cell := c.cell()
	cell.Finished = finished
	c.setCell(cell)
}

func (c *Context) clear() {
	c.state.set(c.path, Cell{})
}

func (c *Context) setTimer(domain TimeDomain, timestamp int64) {
	if c.timers != nil {
		c.timers.SetTimer(c.path, domain, timestamp)
	}
}

func (c *Context) deleteTimer(domain TimeDomain) {
	if c.timers != nil {
		c.timers.DeleteTimer(c.path, domain)
	}
}

// MergeContext is the view of one trigger node while merging the states of
// several windows into the state of the merged window.
type MergeContext struct {
	*Context
	sources []*State
}

func (m *MergeContext) child(i int) *MergeContext {
	return &MergeContext{Context: m.Context.child(i), sources: m.sources}
}

func (m *MergeContext) sourceCells() []Cell {
	cells := make([]Cell, len(m.sources))
	for i, source := range m.sources {
		cells[i] = source.Cell(m.path)
	}
	return cells
}

func (m *MergeContext) finishedInAll() bool {
	for _, cell := range m.sourceCells() {
		if !cell.Finished {
			return false
		}
	}
	return len(m.sources) > 0
}

func (m *MergeContext) finishedInAny() bool {
	for _, cell := range m.sourceCells() {
		if cell.Finished {
			return true
		}
	}
	return false
}
