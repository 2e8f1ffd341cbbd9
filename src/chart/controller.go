package chart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"capture-tool/src/helpers"
	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/models"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrChartExists   = errors.New("chart: already scheduled")
	ErrChartNotFound = errors.New("chart: not found")
)

// -----------------------------------------------------------------------------

// Options configures a Controller.
type Options struct {
	Parent          string
	ContainerPrefix string
	Delay           time.Duration
	Chart           models.MChartConfig

	// Timer defaults to DefaultTimer.
	Timer TimerFunc
}

// -----------------------------------------------------------------------------

type entry struct {
	signal    models.SignalID
	container string
	ready     *Readiness
	cancel    chan struct{}
	instance  interfaces.IChartInstance
	phase     models.ChartPhase
	err       error
	points    int
	redraws   int
}

// -----------------------------------------------------------------------------

// Controller owns chart construction: one container and one render object
// per signal for the life of the session.
type Controller struct {
	opts     Options
	surface  interfaces.ISurface
	sink     interfaces.IRenderSink
	reporter interfaces.IReadinessReporter
	Logger   *logger.Logger

	mu     sync.Mutex
	charts map[models.SignalID]*entry

	// serializes mutations of the parent container
	surfaceMu sync.Mutex
	wg        sync.WaitGroup
}

// -----------------------------------------------------------------------------

// NewController builds a Controller. reporter may be nil.
func NewController(opts Options, surface interfaces.ISurface, sink interfaces.IRenderSink, reporter interfaces.IReadinessReporter, log *logger.Logger) *Controller {
	if opts.Timer == nil {
		opts.Timer = DefaultTimer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		opts:     opts,
		surface:  surface,
		sink:     sink,
		reporter: reporter,
		Logger:   log,
		charts:   make(map[models.SignalID]*entry),
	}
}

// -----------------------------------------------------------------------------

// Schedule arranges for the signal's chart to be built after the configured
// delay. It never blocks on construction unless the delay is zero, in which
// case the chart is built before Schedule returns.
func (c *Controller) Schedule(ctx context.Context, signal models.SignalID) (*Readiness, error) {
	c.mu.Lock()
	if _, exists := c.charts[signal]; exists {
		c.mu.Unlock()
		return nil, ErrChartExists
	}
	e := &entry{
		signal:    signal,
		container: c.opts.ContainerPrefix + signal,
		ready:     NewReadiness(),
		cancel:    make(chan struct{}),
		phase:     models.ChartScheduled,
	}
	c.charts[signal] = e
	c.mu.Unlock()

	if c.reporter != nil {
		c.reporter.ChartScheduled(signal)
	}

	if c.opts.Delay <= 0 {
		c.construct(e)
		return e.ready, nil
	}

	// the timer is armed here so a fake clock sees it before Schedule returns
	timeCh, stop := c.opts.Timer(c.opts.Delay)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-timeCh:
			c.construct(e)
		case <-e.cancel:
			stop()
		case <-ctx.Done():
			stop()
			e.ready.Fail(ctx.Err())
		}
	}()

	return e.ready, nil
}

// -----------------------------------------------------------------------------

func (c *Controller) construct(e *entry) {
	c.surfaceMu.Lock()
	defer c.surfaceMu.Unlock()

	c.mu.Lock()
	current, ok := c.charts[e.signal]
	c.mu.Unlock()
	if !ok || current != e {
		return
	}

	handle, err := c.surface.AppendContainer(c.opts.Parent, e.container)
	if err != nil {
		c.fail(e, helpers.NewChartConstructionError(e.signal, err))
		return
	}

	opts := BuildOptions(e.signal, c.opts.Chart)
	inst, err := c.sink.Construct(opts, models.NewSeriesBuffer(0), handle)
	if err != nil {
		_ = c.surface.RemoveContainer(e.container)
		c.fail(e, helpers.NewChartConstructionError(e.signal, err))
		return
	}

	tracked := &trackedInstance{inner: inst, owner: c, entry: e}

	c.mu.Lock()
	e.instance = tracked
	e.phase = models.ChartReady
	c.mu.Unlock()

	e.ready.Resolve(tracked)
	c.Logger.Debug("Chart %s ready in container %s", e.signal, e.container)
	if c.reporter != nil {
		c.reporter.ChartReady(e.signal)
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) fail(e *entry, err error) {
	c.mu.Lock()
	e.phase = models.ChartFailed
	e.err = err
	c.mu.Unlock()

	e.ready.Fail(err)
	c.Logger.Error("%v", err)
	if c.reporter != nil {
		c.reporter.ChartFailed(e.signal, err)
	}
}

// -----------------------------------------------------------------------------

// Readiness returns the signal's readiness future.
func (c *Controller) Readiness(signal models.SignalID) (*Readiness, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.charts[signal]
	if !ok {
		return nil, false
	}
	return e.ready, true
}

// -----------------------------------------------------------------------------

// Instance returns the signal's chart if it has been built.
func (c *Controller) Instance(signal models.SignalID) (interfaces.IChartInstance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.charts[signal]
	if !ok || e.instance == nil {
		return nil, false
	}
	return e.instance, true
}

// -----------------------------------------------------------------------------

// MarkFailed records a failure observed by a consumer of the chart, such as
// a readiness deadline, without settling the future.
func (c *Controller) MarkFailed(signal models.SignalID, err error) {
	c.mu.Lock()
	e, ok := c.charts[signal]
	if ok && e.phase == models.ChartScheduled {
		e.phase = models.ChartFailed
		e.err = err
	}
	c.mu.Unlock()

	if ok && c.reporter != nil {
		c.reporter.ChartFailed(signal, err)
	}
}

// -----------------------------------------------------------------------------

// States returns a snapshot of every chart ordered by signal.
func (c *Controller) States() []models.MChartState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.MChartState, 0, len(c.charts))
	for _, e := range c.charts {
		st := models.MChartState{
			Signal:    e.signal,
			Container: e.container,
			Phase:     e.phase,
			Points:    e.points,
			Redraws:   e.redraws,
		}
		if e.err != nil {
			st.Error = e.err.Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signal < out[j].Signal })
	return out
}

// -----------------------------------------------------------------------------

// Teardown destroys the signal's chart and detaches its container.
func (c *Controller) Teardown(signal models.SignalID) error {
	c.surfaceMu.Lock()
	defer c.surfaceMu.Unlock()

	c.mu.Lock()
	e, ok := c.charts[signal]
	if ok {
		delete(c.charts, signal)
		e.phase = models.ChartRemoved
	}
	c.mu.Unlock()

	if !ok {
		return ErrChartNotFound
	}

	close(e.cancel)
	e.ready.Fail(ErrTornDown)

	var result error
	if e.instance != nil {
		if err := e.instance.Destroy(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := c.surface.RemoveContainer(e.container); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.reporter != nil {
		c.reporter.ChartRemoved(signal)
	}
	return result
}

// -----------------------------------------------------------------------------

// TeardownAll removes every chart and waits for pending constructions.
func (c *Controller) TeardownAll() error {
	c.mu.Lock()
	signals := make([]models.SignalID, 0, len(c.charts))
	for s := range c.charts {
		signals = append(signals, s)
	}
	c.mu.Unlock()
	sort.Strings(signals)

	var result error
	for _, s := range signals {
		if err := c.Teardown(s); err != nil && !errors.Is(err, ErrChartNotFound) {
			result = multierror.Append(result, err)
		}
	}

	c.wg.Wait()
	return result
}

// -----------------------------------------------------------------------------
// trackedInstance counts deliveries for the state snapshot.
// -----------------------------------------------------------------------------

type trackedInstance struct {
	inner interfaces.IChartInstance
	owner *Controller
	entry *entry
}

func (t *trackedInstance) SetBuffer(buf models.MSeriesBuffer, redraw bool) error {
	if err := t.inner.SetBuffer(buf, redraw); err != nil {
		return err
	}

	t.owner.mu.Lock()
	t.entry.points = buf.Len()
	if redraw {
		t.entry.redraws++
	}
	t.owner.mu.Unlock()
	return nil
}

func (t *trackedInstance) Destroy() error {
	return t.inner.Destroy()
}
