package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"capture-tool/src/chart"
	"capture-tool/src/events"
	"capture-tool/src/helpers"
	"capture-tool/src/ingest"
	"capture-tool/src/models"
	"capture-tool/src/render"
	"capture-tool/src/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/xmidt-org/chronon"
)

// refusingSubscriber rejects every subscription.
type refusingSubscriber struct{}

func (refusingSubscriber) Subscribe(context.Context, string, string) error {
	return errors.New("bus closed")
}

type RegistryTestSuite struct {
	suite.Suite

	ctx      context.Context
	cancel   context.CancelFunc
	bus      *events.Bus
	surface  *render.Memory
	charts   *chart.Controller
	pipeline *ingest.Pipeline

	mu       sync.Mutex
	requests int
	triggers []string
}

func (suite *RegistryTestSuite) SetupTest() {
	suite.ctx, suite.cancel = context.WithCancel(context.Background())
	suite.bus = events.NewBus(nil)
	suite.surface = render.NewMemory("Plot")
	suite.charts = chart.NewController(chart.Options{
		Parent:          "Plot",
		ContainerPrefix: "capture_",
		Chart:           models.MChartConfig{Width: 600, Height: 300},
	}, suite.surface, suite.surface, nil, nil)
	suite.pipeline = ingest.NewPipeline(suite.bus, suite.charts, ingest.Options{}, nil)

	suite.requests = 0
	suite.triggers = nil
	_, err := suite.bus.Listen(models.TopicRequestChannels, func(models.MEvent) {
		suite.mu.Lock()
		defer suite.mu.Unlock()
		suite.requests++
	})
	suite.Require().NoError(err)
	_, err = suite.bus.Listen(models.TopicReturnTrigger, func(e models.MEvent) {
		s, err := events.DecodeString(e)
		suite.Require().NoError(err)
		suite.mu.Lock()
		defer suite.mu.Unlock()
		suite.triggers = append(suite.triggers, s)
	})
	suite.Require().NoError(err)
}

func (suite *RegistryTestSuite) TearDownTest() {
	suite.cancel()
	suite.NoError(suite.pipeline.Close())
	suite.NoError(suite.charts.TeardownAll())
	suite.bus.Close()
}

func (suite *RegistryTestSuite) newRegistry(opts Options) *Registry {
	return NewRegistry(suite.bus, suite.surface, suite.charts, suite.pipeline, trigger.NewEmitter(suite.bus, nil), opts, nil)
}

func (suite *RegistryTestSuite) announce(payload interface{}) {
	suite.Require().NoError(suite.bus.Emit(models.TopicButtons, payload))
}

func (suite *RegistryTestSuite) TestStartRequestsChannels() {
	r := suite.newRegistry(Options{})
	suite.Require().NoError(r.Start(suite.ctx))
	suite.Equal(1, suite.requests)
	suite.Equal(AwaitingChannels, r.State())
	suite.ErrorIs(r.Start(suite.ctx), ErrAlreadyStarted)
}

func (suite *RegistryTestSuite) TestAnnouncementBuildsControlsChartsAndSubscriptions() {
	r := suite.newRegistry(Options{})
	suite.Require().NoError(r.Start(suite.ctx))

	suite.announce([]string{"cpu.load", "vibration.x"})

	signals, err := r.Wait(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal([]string{"cpu.load", "vibration.x"}, signals)
	suite.Equal(ChannelsReceived, r.State())
	suite.Equal([]string{"cpu.load", "vibration.x"}, suite.surface.Controls())
	suite.Equal([]string{"capture_cpu.load", "capture_vibration.x"}, suite.surface.Containers())
	suite.Equal(1, suite.bus.ListenerCount("cpu"))
	suite.Equal(1, suite.bus.ListenerCount("vibration"))

	// activating a control emits the untouched identifier
	suite.Require().NoError(suite.surface.Activate("cpu.load"))
	suite.Require().NoError(suite.surface.Activate("cpu.load"))
	suite.Equal([]string{"cpu.load", "cpu.load"}, suite.triggers)

	// a batch on the derived topic lands in the chart
	suite.Require().NoError(suite.bus.Emit("cpu", []float64{0.5, 0.75}))
	mc, ok := suite.surface.Chart("capture_cpu.load")
	suite.Require().True(ok)
	suite.Eventually(func() bool { return mc.Sets() == 1 }, time.Second, 2*time.Millisecond)
	suite.Equal([]float64{0.5, 0.75}, mc.Buffer().Y)
}

func (suite *RegistryTestSuite) TestSecondAnnouncementIgnored() {
	r := suite.newRegistry(Options{})
	suite.Require().NoError(r.Start(suite.ctx))

	suite.announce([]string{"a.1"})
	suite.announce([]string{"b.1", "c.1"})

	suite.Equal([]string{"a.1"}, r.Signals())
	suite.Equal([]string{"capture_a.1"}, suite.surface.Containers())

	// calling directly is rejected deterministically too
	suite.ErrorIs(r.Announce(suite.ctx, []string{"b.1"}), ErrAlreadyReceived)
	suite.Equal(1, r.Ignored())
	suite.Equal([]string{"a.1"}, r.Signals())
}

func (suite *RegistryTestSuite) TestBareStringAnnouncement() {
	r := suite.newRegistry(Options{})
	suite.Require().NoError(r.Start(suite.ctx))

	suite.announce("vibration")

	signals, err := r.Wait(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal([]string{"vibration"}, signals)
	suite.Equal(1, suite.bus.ListenerCount("vibration"))
}

func (suite *RegistryTestSuite) TestSharedTopicCollisionIsKept() {
	r := suite.newRegistry(Options{Collision: CollisionShare})
	suite.Require().NoError(r.Start(suite.ctx))

	suite.announce([]string{"temp.sensor1", "temp.sensor2"})

	suite.Equal([]string{"temp.sensor1", "temp.sensor2"}, r.Signals())
	suite.Equal(map[string][]string{"temp": {"temp.sensor1", "temp.sensor2"}}, r.Topics())
	suite.Equal(2, suite.bus.ListenerCount("temp"))

	// one batch on the shared topic is drawn into both charts
	suite.Require().NoError(suite.bus.Emit("temp", []float64{20, 21}))
	for _, c := range []string{"capture_temp.sensor1", "capture_temp.sensor2"} {
		mc, ok := suite.surface.Chart(c)
		suite.Require().True(ok)
		suite.Eventually(func() bool { return mc.Sets() == 1 }, time.Second, 2*time.Millisecond)
	}
}

func (suite *RegistryTestSuite) TestRejectCollision() {
	r := suite.newRegistry(Options{Collision: CollisionReject})

	err := r.Announce(suite.ctx, []string{"temp.sensor1", "temp.sensor2", "cpu.load"})

	var collision *helpers.TopicCollisionError
	suite.Require().True(errors.As(err, &collision))
	suite.Equal("temp", collision.Topic)
	suite.Equal("temp.sensor2", collision.Signal)
	suite.Equal("temp.sensor1", collision.Existing)

	suite.Equal([]string{"temp.sensor1", "cpu.load"}, r.Signals())
	suite.Equal(1, suite.bus.ListenerCount("temp"))
}

func (suite *RegistryTestSuite) TestInjectedTopicFunc() {
	r := suite.newRegistry(Options{Topic: func(s string) string { return "sig:" + s }})
	suite.Require().NoError(r.Announce(suite.ctx, []string{"temp.sensor1", "temp.sensor2"}))

	topics := make([]string, 0)
	for t := range r.Topics() {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	suite.Equal([]string{"sig:temp.sensor1", "sig:temp.sensor2"}, topics)
}

func (suite *RegistryTestSuite) TestDuplicateAndEmptyNamesSkipped() {
	r := suite.newRegistry(Options{})
	suite.Require().NoError(r.Announce(suite.ctx, []string{"a.x", "", "a.x"}))
	suite.Equal([]string{"a.x"}, r.Signals())
}

func (suite *RegistryTestSuite) TestChannelsTimeout() {
	clock := chronon.NewFakeClock(time.Now())
	r := suite.newRegistry(Options{
		ChannelsTimeout: time.Second,
		Timer: func(d time.Duration) (<-chan time.Time, func() bool) {
			ft := clock.NewTimer(d)
			return ft.C(), ft.Stop
		},
	})
	suite.Require().NoError(r.Start(suite.ctx))

	clock.Add(time.Second)

	ctx, cancel := context.WithTimeout(suite.ctx, time.Second)
	defer cancel()
	_, err := r.Wait(ctx)

	var terr *helpers.ChannelsTimeoutError
	suite.ErrorAs(err, &terr)
	suite.Equal(AwaitingChannels, r.State())
}

func (suite *RegistryTestSuite) TestSubscribeFailureRemovesChart() {
	r := NewRegistry(suite.bus, suite.surface, suite.charts, refusingSubscriber{}, trigger.NewEmitter(suite.bus, nil), Options{}, nil)

	err := r.Announce(suite.ctx, []string{"cpu.load"})

	suite.Require().Error(err)
	suite.Contains(err.Error(), "failed to subscribe cpu.load")
	suite.Empty(r.Signals())
	suite.Empty(r.Topics())
	suite.Empty(suite.surface.Containers())
	_, ok := suite.charts.Readiness("cpu.load")
	suite.False(ok)
}

func (suite *RegistryTestSuite) TestLateAnnouncementWinsOverTimeout() {
	clock := chronon.NewFakeClock(time.Now())
	r := suite.newRegistry(Options{
		ChannelsTimeout: time.Second,
		Timer: func(d time.Duration) (<-chan time.Time, func() bool) {
			ft := clock.NewTimer(d)
			return ft.C(), ft.Stop
		},
	})
	suite.Require().NoError(r.Start(suite.ctx))
	clock.Add(time.Second)

	ctx, cancel := context.WithTimeout(suite.ctx, time.Second)
	defer cancel()
	var terr *helpers.ChannelsTimeoutError
	_, err := r.Wait(ctx)
	suite.Require().ErrorAs(err, &terr)

	suite.announce([]string{"cpu.load"})

	for i := 0; i < 50; i++ {
		signals, err := r.Wait(ctx)
		suite.Require().NoError(err)
		suite.Equal([]string{"cpu.load"}, signals)
	}
}

func (suite *RegistryTestSuite) TestNoAnnouncementLeavesRegistryInert() {
	r := suite.newRegistry(Options{})
	suite.Require().NoError(r.Start(suite.ctx))

	ctx, cancel := context.WithTimeout(suite.ctx, 20*time.Millisecond)
	defer cancel()
	_, err := r.Wait(ctx)

	suite.ErrorIs(err, context.DeadlineExceeded)
	suite.Empty(suite.surface.Controls())
}

func TestRegistry(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-channels", AwaitingChannels.String())
	assert.Equal(t, "channels-received", ChannelsReceived.String())
	assert.Equal(t, "State(7)", State(7).String())
}
