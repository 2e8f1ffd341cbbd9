package render

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"capture-tool/src/interfaces"
	"capture-tool/src/models"
)

var (
	ErrControlExists     = errors.New("render: control already exists")
	ErrControlNotFound   = errors.New("render: control not found")
	ErrContainerExists   = errors.New("render: container already exists")
	ErrContainerNotFound = errors.New("render: container not found")
	ErrInstanceDestroyed = errors.New("render: chart instance destroyed")
)

var (
	_ interfaces.ISurface    = (*Memory)(nil)
	_ interfaces.IRenderSink = (*Memory)(nil)
)

// -----------------------------------------------------------------------------

// Memory is a headless surface and render sink. It records every control,
// container and chart so the session can run without a browser attached.
type Memory struct {
	mu         sync.Mutex
	roots      map[string]struct{}
	controls   map[string]func()
	order      []string
	containers map[string]interfaces.ContainerHandle
	charts     map[string]*MemoryChart // by container id
}

// -----------------------------------------------------------------------------

// NewMemory creates a surface whose document already holds the given root
// containers.
func NewMemory(roots ...string) *Memory {
	m := &Memory{
		roots:      make(map[string]struct{}),
		controls:   make(map[string]func()),
		containers: make(map[string]interfaces.ContainerHandle),
		charts:     make(map[string]*MemoryChart),
	}
	for _, r := range roots {
		m.roots[r] = struct{}{}
	}
	return m
}

// -----------------------------------------------------------------------------

func (m *Memory) CreateControl(id string, onActivate func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.controls[id]; ok {
		return fmt.Errorf("%w: %s", ErrControlExists, id)
	}
	m.controls[id] = onActivate
	m.order = append(m.order, id)
	return nil
}

// -----------------------------------------------------------------------------

// Activate simulates a user interaction with the control named id.
func (m *Memory) Activate(id string) error {
	m.mu.Lock()
	fn, ok := m.controls[id]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrControlNotFound, id)
	}
	if fn != nil {
		fn()
	}
	return nil
}

// -----------------------------------------------------------------------------

// Controls lists control ids in creation order.
func (m *Memory) Controls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// -----------------------------------------------------------------------------

func (m *Memory) AppendContainer(parent, id string) (interfaces.ContainerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, isRoot := m.roots[parent]
	_, isContainer := m.containers[parent]
	if !isRoot && !isContainer {
		return interfaces.ContainerHandle{}, fmt.Errorf("%w: parent %s", ErrContainerNotFound, parent)
	}
	if _, ok := m.containers[id]; ok {
		return interfaces.ContainerHandle{}, fmt.Errorf("%w: %s", ErrContainerExists, id)
	}

	h := interfaces.ContainerHandle{ID: id, Parent: parent}
	m.containers[id] = h
	return h, nil
}

// -----------------------------------------------------------------------------

func (m *Memory) RemoveContainer(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.containers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	delete(m.containers, id)
	delete(m.charts, id)
	return nil
}

// -----------------------------------------------------------------------------

// Containers lists container ids in lexical order.
func (m *Memory) Containers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.containers))
	for id := range m.containers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

func (m *Memory) Construct(opts models.MChartOptions, initial models.MSeriesBuffer, container interfaces.ContainerHandle) (interfaces.IChartInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.containers[container.ID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, container.ID)
	}

	c := &MemoryChart{
		Options:   opts,
		Container: container,
		buffer:    initial.Clone(),
	}
	m.charts[container.ID] = c
	return c, nil
}

// -----------------------------------------------------------------------------

// Chart returns the chart built in container id.
func (m *Memory) Chart(container string) (*MemoryChart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.charts[container]
	return c, ok
}

// -----------------------------------------------------------------------------
// MemoryChart
// -----------------------------------------------------------------------------

type MemoryChart struct {
	Options   models.MChartOptions
	Container interfaces.ContainerHandle

	mu        sync.Mutex
	buffer    models.MSeriesBuffer
	sets      int
	redraws   int
	destroyed bool
}

func (c *MemoryChart) SetBuffer(buf models.MSeriesBuffer, redraw bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrInstanceDestroyed
	}
	c.buffer = buf.Clone()
	c.sets++
	if redraw {
		c.redraws++
	}
	return nil
}

func (c *MemoryChart) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	return nil
}

// Buffer returns a copy of the committed series.
func (c *MemoryChart) Buffer() models.MSeriesBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Clone()
}

// Redraws returns how many commits forced a repaint.
func (c *MemoryChart) Redraws() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redraws
}

// Sets returns how many times the buffer was committed.
func (c *MemoryChart) Sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}
