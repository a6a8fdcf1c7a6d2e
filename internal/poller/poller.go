package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/feed"
	"yard-anpr-service/internal/service"
)

type Processor interface {
	ProcessDetection(ctx context.Context, d anpr.Detection) (service.Outcome, error)
}

// CursorStore persists the watermark so a restart resumes where it stopped.
type CursorStore interface {
	LoadCursor(ctx context.Context, tenantID uuid.UUID) (int64, error)
	SaveCursor(ctx context.Context, tenantID uuid.UUID, lastID int64) error
}

const manualCamera = "manual_trigger"

type Config struct {
	TenantID    uuid.UUID
	Interval    time.Duration
	BatchSize   int
	Capacity    int
	MaxAttempts int
	StaleAfter  time.Duration
}

// Status is the snapshot served to operators.
type Status struct {
	IsRunning              bool       `json:"isRunning"`
	PollingIntervalSeconds int        `json:"pollingIntervalSeconds"`
	ProcessedPlatesCount   int        `json:"processedPlatesCount"`
	LastCheckedID          int64      `json:"lastCheckedId"`
	LastAdvanceAt          *time.Time `json:"lastAdvanceAt,omitempty"`
	LastError              string     `json:"lastError,omitempty"`
}

// TickResult summarises one poll.
type TickResult struct {
	Skipped   bool
	Fetched   int
	Processed int
	Deferred  int
}

// Poller drives detections from a Source into the journey processor. All processing,
// scheduled or manual, is serialised by work.
type Poller struct {
	source feed.Source
	proc   Processor
	cursor CursorStore
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time

	work sync.Mutex

	mu            sync.RWMutex
	running       bool
	seen          *seenSet
	watermark     int64
	attempts      map[int64]int
	lastAdvanceAt time.Time
	progressAt    time.Time
	lastError     string
	stalled       bool

	stop chan struct{}
	done chan struct{}
}

func New(source feed.Source, proc Processor, cursor CursorStore, cfg Config, log zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Poller{
		source:   source,
		proc:     proc,
		cursor:   cursor,
		cfg:      cfg,
		log:      log.With().Str("component", "poller").Logger(),
		now:      time.Now,
		seen:     newSeenSet(cfg.Capacity),
		attempts: make(map[int64]int),
	}
}

// Start restores the watermark and begins polling. It returns immediately.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.progressAt = p.now()
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stop, p.done
	p.mu.Unlock()

	p.restoreCursor(ctx)

	go func() {
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			close(done)
		}()
		p.log.Info().Dur("interval", p.cfg.Interval).Msg("poller started")

		// Ticks use a detached context so Stop lets an in-flight batch finish.
		tickCtx := context.WithoutCancel(ctx)
		p.Tick(tickCtx)

		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !p.tickUnlessStopped(ctx, tickCtx, stop) {
					p.log.Info().Msg("poller stopped")
					return
				}
			case <-stop:
				p.log.Info().Msg("poller stopped")
				return
			case <-ctx.Done():
				p.log.Info().Msg("poller stopped by context")
				return
			}
		}
	}()
}

// tickUnlessStopped runs a tick only if neither Stop nor the parent context fired
// while the ticker was also ready.
func (p *Poller) tickUnlessStopped(parent, tickCtx context.Context, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-parent.Done():
		return false
	default:
	}
	p.Tick(tickCtx)
	return true
}

// Stop halts polling and waits for an in-flight tick to complete.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
}

func (p *Poller) restoreCursor(ctx context.Context) {
	if p.cursor == nil {
		return
	}
	last, err := p.cursor.LoadCursor(ctx, p.cfg.TenantID)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to load watermark, starting from current feed")
		return
	}
	p.mu.Lock()
	if last > p.watermark {
		p.watermark = last
	}
	p.mu.Unlock()
	p.log.Info().Int64("last_checked_id", last).Msg("restored watermark")
}

// Tick runs one poll. It is skipped when another batch or manual call holds the
// processing lock.
func (p *Poller) Tick(ctx context.Context) TickResult {
	if !p.work.TryLock() {
		p.log.Debug().Msg("previous batch still running, skipping tick")
		return TickResult{Skipped: true}
	}
	defer p.work.Unlock()

	detections, err := p.source.Latest(ctx, p.cfg.BatchSize)
	if err != nil {
		p.log.Warn().
			Err(err).
			Bool("malformed", errors.Is(err, feed.ErrMalformedPayload)).
			Msg("failed to fetch detections, skipping tick")
		p.setError(err)
		p.checkStall(true)
		return TickResult{}
	}

	p.setError(nil)

	res := TickResult{Fetched: len(detections)}
	fresh := p.selectFresh(detections)

	for i, d := range fresh {
		_, err := p.proc.ProcessDetection(ctx, d)
		if err != nil && p.retryable(d, err) {
			// Later detections wait so the watermark never passes an uncommitted one.
			res.Deferred = len(fresh) - i
			break
		}
		// Persisted per detection: a restart resumes after the last committed one.
		if p.markSeen(d.ID) {
			p.saveCursor(ctx, d.ID)
		}
		res.Processed++
	}

	p.checkStall(len(fresh) > 0)
	return res
}

// selectFresh drops already handled detections and orders the rest oldest first.
func (p *Poller) selectFresh(detections []anpr.Detection) []anpr.Detection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var (
		fresh []anpr.Detection
		minID int64
	)
	for _, d := range detections {
		if minID == 0 || d.ID < minID {
			minID = d.ID
		}
		if d.ID <= p.watermark || p.seen.Has(d.ID) {
			continue
		}
		fresh = append(fresh, d)
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })

	if p.watermark > 0 && minID > p.watermark+1 && len(detections) >= p.cfg.BatchSize {
		p.log.Warn().
			Int64("last_checked_id", p.watermark).
			Int64("oldest_available_id", minID).
			Int64("missed", minID-p.watermark-1).
			Msg("feed retention gap, detections were missed")
	}
	return fresh
}

// retryable records a failed attempt and reports whether the detection should be
// retried on a later tick.
func (p *Poller) retryable(d anpr.Detection, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := p.log.With().Int64("detection_id", d.ID).Str("plate", d.Plate).Logger()
	p.lastError = err.Error()

	if errors.Is(err, service.ErrInvalidInput) {
		log.Warn().Err(err).Msg("skipping invalid detection")
		delete(p.attempts, d.ID)
		return false
	}

	p.attempts[d.ID]++
	n := p.attempts[d.ID]
	if n < p.cfg.MaxAttempts {
		log.Error().Err(err).Int("attempt", n).Msg("failed to process detection, will retry")
		return true
	}
	log.Error().Err(err).Int("attempts", n).Msg("giving up on detection")
	delete(p.attempts, d.ID)
	return false
}

// markSeen records a handled detection and reports whether it advanced the watermark.
// Attempt counters at or below the watermark are dropped, including those of
// detections that left the feed window before succeeding.
func (p *Poller) markSeen(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen.Add(id)
	delete(p.attempts, id)
	if id <= p.watermark {
		return false
	}
	p.watermark = id
	p.lastAdvanceAt = p.now()
	p.progressAt = p.lastAdvanceAt
	p.stalled = false
	for pending := range p.attempts {
		if pending <= p.watermark {
			delete(p.attempts, pending)
		}
	}
	return true
}

func (p *Poller) saveCursor(ctx context.Context, id int64) {
	if p.cursor == nil {
		return
	}
	if err := p.cursor.SaveCursor(ctx, p.cfg.TenantID, id); err != nil {
		p.log.Warn().Err(err).Int64("last_checked_id", id).Msg("failed to persist watermark")
	}
}

func (p *Poller) checkStall(pending bool) {
	if p.cfg.StaleAfter <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !pending || p.stalled || p.progressAt.IsZero() {
		return
	}
	if since := p.now().Sub(p.progressAt); since > p.cfg.StaleAfter {
		p.stalled = true
		p.log.Warn().
			Dur("since_last_advance", since).
			Int64("last_checked_id", p.watermark).
			Msg("watermark stalled")
	}
}

func (p *Poller) setError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.lastError = ""
		return
	}
	p.lastError = err.Error()
}

// ProcessManual runs an operator-supplied detection on the same serialised path as
// the feed. Manual detections carry no feed id and are not deduplicated.
func (p *Poller) ProcessManual(ctx context.Context, d anpr.Detection) (service.Outcome, error) {
	p.work.Lock()
	defer p.work.Unlock()

	if d.DetectedAt.IsZero() {
		d.DetectedAt = p.now()
	}
	if d.CameraType == "" {
		d.CameraType = manualCamera
	}
	return p.proc.ProcessDetection(ctx, d)
}

// Inject simulates a detection now and reports whether anything was recorded.
func (p *Poller) Inject(ctx context.Context, plate string, direction anpr.Direction) (bool, error) {
	out, err := p.ProcessManual(ctx, anpr.Detection{
		Plate:     plate,
		Direction: direction,
		Method:    anpr.MethodANPRAuto,
	})
	if err != nil {
		return false, err
	}
	return out.Processed, nil
}

func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Status{
		IsRunning:              p.running,
		PollingIntervalSeconds: int(p.cfg.Interval / time.Second),
		ProcessedPlatesCount:   p.seen.Len(),
		LastCheckedID:          p.watermark,
		LastError:              p.lastError,
	}
	if !p.lastAdvanceAt.IsZero() {
		t := p.lastAdvanceAt
		st.LastAdvanceAt = &t
	}
	return st
}
