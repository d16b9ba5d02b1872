package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/common"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/goose"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/l2"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/sv"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/tick"
)

// State tracks the controller lifecycle. Transitions only move forward
// within a run; Configure resets a terminated controller to Configured.
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stats is the read-only outcome of a run. The transmit loop owns the
// packet counters while running; callers get a consistent copy via
// Statistics.
type Stats struct {
	PacketsSent     uint32
	PacketsFailed   uint32
	StartTime       time.Time
	EndTime         time.Time
	StoppedByGoose  bool
	GooseStopReason string
}

// GooseCallback observes every decoded GOOSE frame, matching or not.
type GooseCallback func(msg goose.Message)

// ProgressCallback receives (packets sent, elapsed seconds) every
// ProgressInterval packets.
type ProgressCallback func(packetsSent uint32, elapsed float64)

// TransportFactory opens the link-layer handle for a run.
type TransportFactory func(iface string) (l2.Handle, error)

// listenerPollSleep paces the receive loop when no frame is ready.
const listenerPollSleep = 2 * time.Millisecond

// Controller drives one injection session: Configure, Run, cooperative
// Stop. A controller may be reconfigured and rerun after a run terminates.
type Controller struct {
	mu      sync.Mutex
	state   State
	lastErr string

	cfg     Config
	id      uuid.UUID
	prefix  []byte
	builder *sv.Builder
	phasors [sv.NumChannels]sv.Phasor
	stream  *replayStream

	stats   Stats
	metrics *common.Metrics

	gooseCB    GooseCallback
	progressCB ProgressCallback

	// running is the cooperative stop flag shared by the transmit loop,
	// the listener and Stop.
	running int32

	// Seams for tests and alternative transports.
	transport TransportFactory
	newClock  func() tick.PeriodicClock
	alignRun  func(m Mode)
	lookupMAC func(iface string) eth.MAC
}

// NewController returns an idle controller bound to the live transport
// and the wall clock.
func NewController() *Controller {
	return &Controller{
		metrics:   common.NewMetrics(),
		transport: l2.Open,
		newClock:  func() tick.PeriodicClock { return tick.NewWall() },
		alignRun:  alignWall,
		lookupMAC: l2.InterfaceMAC,
	}
}

func alignWall(m Mode) {
	if m == ModeReplay {
		tick.SleepToReplayStart()
		return
	}
	tick.SleepToNextSecond()
}

// SetTransport replaces the transport factory, e.g. with a pcap recorder
// or the in-memory loopback. Only valid before Configure.
func (c *Controller) SetTransport(f TransportFactory) {
	c.mu.Lock()
	if f != nil {
		c.transport = f
	}
	c.mu.Unlock()
}

// SetClock replaces the transmit pacing clock. Only valid before Run.
func (c *Controller) SetClock(factory func() tick.PeriodicClock, align func(m Mode)) {
	c.mu.Lock()
	if factory != nil {
		c.newClock = factory
	}
	if align != nil {
		c.alignRun = align
	}
	c.mu.Unlock()
}

func (c *Controller) SetGooseCallback(cb GooseCallback) {
	c.mu.Lock()
	c.gooseCB = cb
	c.mu.Unlock()
}

func (c *Controller) SetProgressCallback(cb ProgressCallback) {
	c.mu.Lock()
	c.progressCB = cb
	c.mu.Unlock()
}

// ID returns the session id minted by the last Configure.
func (c *Controller) ID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Config returns a copy of the configuration accepted by Configure.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Metrics exposes the live counters, e.g. for a progress printer or a
// metrics exporter.
func (c *Controller) Metrics() *common.Metrics {
	return c.metrics
}

// Configure validates cfg, resolves addresses, builds the static frame
// prefix and, in replay mode, loads and resamples the recording. It is
// rejected while a run is active.
func (c *Controller) Configure(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning || c.state == StateStopping {
		return c.failLocked(fmt.Errorf("%w: cannot configure while %s", ErrState, c.state))
	}

	cfg.ApplyDefaults()
	dst, src, vlan, err := cfg.validate()
	if err != nil {
		return c.failLocked(err)
	}
	if src.IsZero() {
		src = c.lookupMAC(cfg.Iface)
	}

	builder, err := sv.NewBuilder(cfg.AppID, cfg.SVID, cfg.SampleRate)
	if err != nil {
		return c.failLocked(fmt.Errorf("%w: %v", ErrConfig, err))
	}

	var stream *replayStream
	if cfg.Mode() == ModeReplay {
		stream, err = loadReplayStream(&cfg)
		if err != nil {
			return c.failLocked(err)
		}
	}

	c.cfg = cfg
	c.id = uuid.New()
	c.prefix = eth.Prefix(dst, src, vlan)
	c.builder = builder
	c.phasors = cfg.phasorSet()
	c.stream = stream
	c.stats = Stats{}
	c.metrics = common.NewMetrics()
	if stream != nil && !cfg.LoopPlayback {
		c.metrics.SetTotalPackets(int64(stream.numSamples))
	}
	c.state = StateConfigured
	c.lastErr = ""
	return nil
}

// Run transmits until the stream ends, Stop is called or a matching GOOSE
// stop frame arrives. It blocks for the whole run and joins the listener
// before returning.
func (c *Controller) Run() error {
	c.mu.Lock()
	if c.state != StateConfigured {
		err := fmt.Errorf("%w: run requires a configured session, state is %s", ErrState, c.state)
		c.mu.Unlock()
		return c.fail(err)
	}
	cfg := c.cfg
	prefix := c.prefix
	builder := c.builder
	phasors := c.phasors
	stream := c.stream
	metrics := c.metrics
	progressCB := c.progressCB
	c.state = StateRunning
	c.stats = Stats{StartTime: time.Now()}
	c.mu.Unlock()

	handle, err := c.transport(cfg.Iface)
	if err != nil {
		c.terminate(nil)
		return c.fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}

	// A zero source at configure time means the interface lookup failed;
	// the open handle is the authoritative fallback.
	if prefix != nil && macAt(prefix, 6).IsZero() && !handle.LocalMAC().IsZero() {
		mac := handle.LocalMAC()
		prefix = append([]byte(nil), prefix...)
		copy(prefix[6:12], mac[:])
		c.mu.Lock()
		c.prefix = prefix
		c.mu.Unlock()
	}

	atomic.StoreInt32(&c.running, 1)
	metrics.Start()

	var wg sync.WaitGroup
	if cfg.EnableGooseMonitoring {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.listen(handle, cfg.StopGooseRef, metrics)
		}()
	}

	c.alignRun(cfg.Mode())

	period := time.Second / time.Duration(cfg.SampleRate)
	clock := c.newClock()
	clock.Align(period)

	frame := make([]byte, 0, len(prefix)+sv.DatasetLen+64)
	var sent, failed uint32
	smpCnt := uint16(0)
	sampleIdx := 0
	var runErr error

	for atomic.LoadInt32(&c.running) == 1 {
		var samples [sv.NumChannels]int32
		if stream != nil {
			samples = stream.at(sampleIdx)
		} else {
			samples = builder.PhasorSamples(phasors, smpCnt)
		}
		payload, err := builder.Encode(smpCnt, samples)
		if err != nil {
			runErr = fmt.Errorf("%w: %v", ErrConfig, err)
			break
		}
		frame = frame[:0]
		frame = append(frame, prefix...)
		frame = append(frame, payload...)

		if n, err := handle.Send(frame); err != nil || n <= 0 {
			failed++
			metrics.IncFailed()
		} else {
			sent++
			metrics.IncSent()
			if progressCB != nil && cfg.ProgressInterval > 0 && sent%cfg.ProgressInterval == 0 {
				progressCB(sent, metrics.Snapshot().Duration.Seconds())
			}
		}

		smpCnt = builder.NextSmpCnt(smpCnt)
		if stream != nil {
			sampleIdx++
			if sampleIdx >= stream.numSamples {
				if !cfg.LoopPlayback {
					break
				}
				sampleIdx = 0
			}
		}
		clock.Wait()
	}

	atomic.StoreInt32(&c.running, 0)
	wg.Wait()
	metrics.Stop()

	c.mu.Lock()
	c.stats.PacketsSent = sent
	c.stats.PacketsFailed = failed
	c.stats.EndTime = time.Now()
	c.mu.Unlock()

	c.terminate(handle)
	if runErr != nil {
		return c.fail(runErr)
	}
	return nil
}

// listen drains the receive side, counting GOOSE frames and requesting a
// stop when one matches the configured trigger reference.
func (c *Controller) listen(handle l2.Handle, trigger string, metrics *common.Metrics) {
	for atomic.LoadInt32(&c.running) == 1 {
		frame, err := handle.Receive()
		if err != nil {
			if errors.Is(err, l2.ErrClosed) {
				return
			}
			time.Sleep(listenerPollSleep)
			continue
		}
		if frame == nil {
			time.Sleep(listenerPollSleep)
			continue
		}
		msg := goose.Decode(frame)
		if !msg.Valid {
			continue
		}
		metrics.IncGooseFrame()
		c.mu.Lock()
		cb := c.gooseCB
		c.mu.Unlock()
		if cb != nil {
			cb(msg)
		}
		if msg.MatchesTrigger(trigger) {
			c.mu.Lock()
			c.stats.StoppedByGoose = true
			c.stats.GooseStopReason = fmt.Sprintf("stNum=%d sqNum=%d gocbRef=%s",
				msg.StNum, msg.SqNum, msg.GocbRef)
			c.state = StateStopping
			c.mu.Unlock()
			atomic.StoreInt32(&c.running, 0)
			return
		}
	}
}

// Stop requests a cooperative stop. Calling it on a session that is not
// running is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StateStopping
	}
	c.mu.Unlock()
	atomic.StoreInt32(&c.running, 0)
}

// IsRunning reports whether the transmit loop is live.
func (c *Controller) IsRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

// Statistics returns a copy of the run outcome.
func (c *Controller) Statistics() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LastError returns the message of the most recent failure, empty when
// the last operation succeeded.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) terminate(handle l2.Handle) {
	if handle != nil {
		handle.Close()
	}
	c.mu.Lock()
	c.state = StateTerminated
	c.mu.Unlock()
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failLocked(err)
}

func (c *Controller) failLocked(err error) error {
	c.lastErr = err.Error()
	return err
}

func macAt(frame []byte, off int) eth.MAC {
	var mac eth.MAC
	if len(frame) >= off+6 {
		copy(mac[:], frame[off:off+6])
	}
	return mac
}
