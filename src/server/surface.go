package server

import (
	"fmt"
	"sync"

	"capture-tool/src/interfaces"
	"capture-tool/src/models"
)

// -----------------------------------------------------------------------------
// Surface
// -----------------------------------------------------------------------------

func (s *HTTPServer) CreateControl(id string, onActivate func()) error {
	s.mu.Lock()
	if _, ok := s.controls[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrControlExists, id)
	}
	s.controls[id] = onActivate
	s.mu.Unlock()

	s.publish(&models.MWireMessage{Type: models.WireControl, ID: id})
	return nil
}

// Activate runs the callback bound to control id.
func (s *HTTPServer) Activate(id string) error {
	s.mu.Lock()
	fn, ok := s.controls[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrControlNotFound, id)
	}
	if fn != nil {
		fn()
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) AppendContainer(parent, id string) (interfaces.ContainerHandle, error) {
	s.mu.Lock()
	if parent != s.Config.Render.ParentContainer {
		if _, ok := s.containers[parent]; !ok {
			s.mu.Unlock()
			return interfaces.ContainerHandle{}, fmt.Errorf("%w: parent %s", ErrContainerNotFound, parent)
		}
	}
	if _, ok := s.containers[id]; ok {
		s.mu.Unlock()
		return interfaces.ContainerHandle{}, fmt.Errorf("%w: %s", ErrContainerExists, id)
	}
	h := interfaces.ContainerHandle{ID: id, Parent: parent}
	s.containers[id] = h
	s.mu.Unlock()

	s.publish(&models.MWireMessage{Type: models.WireContainer, ID: id, Parent: parent})
	return h, nil
}

func (s *HTTPServer) RemoveContainer(id string) error {
	s.mu.Lock()
	if _, ok := s.containers[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	delete(s.containers, id)
	delete(s.charts, id)
	s.mu.Unlock()

	s.publish(&models.MWireMessage{Type: models.WireRemove, ID: id})
	return nil
}

// -----------------------------------------------------------------------------
// Render Sink
// -----------------------------------------------------------------------------

func (s *HTTPServer) Construct(opts models.MChartOptions, initial models.MSeriesBuffer, container interfaces.ContainerHandle) (interfaces.IChartInstance, error) {
	s.mu.Lock()
	if _, ok := s.containers[container.ID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, container.ID)
	}
	chart := &RemoteChart{server: s, id: container.ID}
	s.charts[container.ID] = chart
	s.mu.Unlock()

	s.publish(&models.MWireMessage{
		Type:      models.WireConstruct,
		ID:        container.ID,
		Container: container.ID,
		Options:   &opts,
		Data:      initial.Columns(),
	})
	return chart, nil
}

// -----------------------------------------------------------------------------
// RemoteChart
// -----------------------------------------------------------------------------

// RemoteChart is a chart drawn by the connected pages.
type RemoteChart struct {
	server *HTTPServer
	id     string

	mu        sync.Mutex
	destroyed bool
}

func (c *RemoteChart) SetBuffer(buf models.MSeriesBuffer, redraw bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrInstanceDestroyed
	}

	c.server.publish(&models.MWireMessage{
		Type:   models.WireSetData,
		ID:     c.id,
		Data:   buf.Columns(),
		Redraw: redraw,
	})
	return nil
}

func (c *RemoteChart) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	return nil
}

