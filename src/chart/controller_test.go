package chart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"capture-tool/src/helpers"
	"capture-tool/src/interfaces"
	"capture-tool/src/models"
	"capture-tool/src/render"

	"github.com/stretchr/testify/suite"
	"github.com/xmidt-org/chronon"
)

const testDelay = 100 * time.Millisecond

// reporterSpy records readiness transitions.
type reporterSpy struct {
	mu     sync.Mutex
	events []string
}

func (r *reporterSpy) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *reporterSpy) ChartScheduled(s string) { r.add("scheduled:" + s) }
func (r *reporterSpy) ChartReady(s string) { r.add("ready:" + s) }
func (r *reporterSpy) ChartFailed(s string, _ error) { r.add("failed:" + s) }
func (r *reporterSpy) ChartRemoved(s string) { r.add("removed:" + s) }

func (r *reporterSpy) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// failingSink refuses to build charts.
type failingSink struct{}

func (failingSink) Construct(models.MChartOptions, models.MSeriesBuffer, interfaces.ContainerHandle) (interfaces.IChartInstance, error) {
	return nil, errors.New("no canvas")
}

type ControllerTestSuite struct {
	suite.Suite

	clock    *chronon.FakeClock
	surface  *render.Memory
	reporter *reporterSpy
}

func (suite *ControllerTestSuite) SetupTest() {
	suite.clock = chronon.NewFakeClock(time.Now())
	suite.surface = render.NewMemory("Plot")
	suite.reporter = new(reporterSpy)
}

func (suite *ControllerTestSuite) newController(delay time.Duration, sink interfaces.IRenderSink) *Controller {
	if sink == nil {
		sink = suite.surface
	}
	return NewController(Options{
		Parent:          "Plot",
		ContainerPrefix: "capture_",
		Delay:           delay,
		Chart:           models.MChartConfig{Width: 600, Height: 300, LineColor: "red", YScaleDistr: 2, AxisSize: 100},
		Timer:           fakeTimer(suite.clock),
	}, suite.surface, sink, suite.reporter, nil)
}

func (suite *ControllerTestSuite) waitReady(r *Readiness) {
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		suite.FailNow("chart never settled")
	}
}

func (suite *ControllerTestSuite) TestConstructionDeferredUntilDelay() {
	c := suite.newController(testDelay, nil)
	r, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)

	suite.False(r.Ready())
	suite.Empty(suite.surface.Containers())

	suite.clock.Add(testDelay / 2)
	suite.Never(r.Ready, 30*time.Millisecond, 5*time.Millisecond)

	suite.clock.Add(testDelay / 2)
	suite.waitReady(r)
	suite.True(r.Ready())
	suite.Equal([]string{"capture_x"}, suite.surface.Containers())

	chart, ok := suite.surface.Chart("capture_x")
	suite.Require().True(ok)
	suite.Equal(600, chart.Options.Width)
	suite.Equal(300, chart.Options.Height)
	suite.Require().Len(chart.Options.Series, 2)
	suite.Empty(chart.Options.Series[0].Label)
	suite.Equal("x", chart.Options.Series[1].Label)
	suite.Equal("red", chart.Options.Series[1].Stroke)
	suite.False(chart.Options.Series[1].ShowPoints)
	suite.Equal(0, chart.Buffer().Len())

	suite.Equal([]string{"scheduled:x", "ready:x"}, suite.reporter.snapshot())
}

func (suite *ControllerTestSuite) TestZeroDelayIsSynchronous() {
	c := suite.newController(0, nil)
	r, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)
	suite.True(r.Ready())

	inst, ok := c.Instance("x")
	suite.True(ok)
	suite.NotNil(inst)
}

func (suite *ControllerTestSuite) TestSignalsDoNotStallEachOther() {
	c := suite.newController(testDelay, nil)
	ra, err := c.Schedule(context.Background(), "a")
	suite.Require().NoError(err)
	rb, err := c.Schedule(context.Background(), "b")
	suite.Require().NoError(err)

	suite.clock.Add(testDelay)
	suite.waitReady(ra)
	suite.waitReady(rb)
	suite.Equal([]string{"capture_a", "capture_b"}, suite.surface.Containers())
}

func (suite *ControllerTestSuite) TestScheduleTwiceRejected() {
	c := suite.newController(0, nil)
	_, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)

	_, err = c.Schedule(context.Background(), "x")
	suite.ErrorIs(err, ErrChartExists)
}

func (suite *ControllerTestSuite) TestMissingParentFailsReadiness() {
	c := NewController(Options{Parent: "Missing", ContainerPrefix: "capture_"}, suite.surface, suite.surface, suite.reporter, nil)
	r, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)

	_, err = r.Wait(context.Background())
	var cerr *helpers.ChartConstructionError
	suite.ErrorAs(err, &cerr)

	states := c.States()
	suite.Require().Len(states, 1)
	suite.Equal(models.ChartFailed, states[0].Phase)
	suite.NotEmpty(states[0].Error)
	suite.Contains(suite.reporter.snapshot(), "failed:x")
}

func (suite *ControllerTestSuite) TestSinkFailureReleasesContainer() {
	c := suite.newController(0, failingSink{})
	r, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)

	_, err = r.Wait(context.Background())
	suite.Error(err)
	suite.Empty(suite.surface.Containers())
}

func (suite *ControllerTestSuite) TestTeardownBeforeConstruction() {
	c := suite.newController(testDelay, nil)
	r, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)

	suite.Require().NoError(c.Teardown("x"))
	_, err = r.Wait(context.Background())
	suite.ErrorIs(err, ErrTornDown)

	suite.clock.Add(testDelay)
	suite.Never(func() bool { return len(suite.surface.Containers()) > 0 }, 30*time.Millisecond, 5*time.Millisecond)
	suite.ErrorIs(c.Teardown("x"), ErrChartNotFound)
}

func (suite *ControllerTestSuite) TestTeardownAll() {
	c := suite.newController(0, nil)
	for _, s := range []string{"a", "b"} {
		_, err := c.Schedule(context.Background(), s)
		suite.Require().NoError(err)
	}

	suite.Require().NoError(c.TeardownAll())
	suite.Empty(suite.surface.Containers())
	suite.Empty(c.States())
	suite.Contains(suite.reporter.snapshot(), "removed:a")
	suite.Contains(suite.reporter.snapshot(), "removed:b")
}

func (suite *ControllerTestSuite) TestContextCancelFailsPending() {
	c := suite.newController(testDelay, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r, err := c.Schedule(ctx, "x")
	suite.Require().NoError(err)

	cancel()
	_, err = r.Wait(context.Background())
	suite.ErrorIs(err, context.Canceled)
}

func (suite *ControllerTestSuite) TestStatesTrackDeliveries() {
	c := suite.newController(0, nil)
	r, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)

	inst, err := r.Wait(context.Background())
	suite.Require().NoError(err)
	suite.Require().NoError(inst.SetBuffer(models.MSeriesBuffer{X: []float64{0, 1, 2}, Y: []float64{5, 6, 7}}, true))

	states := c.States()
	suite.Require().Len(states, 1)
	suite.Equal(models.ChartReady, states[0].Phase)
	suite.Equal(3, states[0].Points)
	suite.Equal(1, states[0].Redraws)
	suite.Equal("capture_x", states[0].Container)
}

func (suite *ControllerTestSuite) TestMarkFailed() {
	c := suite.newController(testDelay, nil)
	_, err := c.Schedule(context.Background(), "x")
	suite.Require().NoError(err)

	c.MarkFailed("x", &helpers.ReadinessTimeoutError{Signal: "x", Timeout: time.Second})
	suite.Equal(models.ChartFailed, c.States()[0].Phase)
	suite.Contains(suite.reporter.snapshot(), "failed:x")
}

func TestController(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}
