package session

import (
	"sort"
	"sync"
	"time"

	"orderflow/internal/domain/entity/instruments"
	"orderflow/internal/domain/entity/marketdata"
	"orderflow/internal/domain/footprint"
	apperrors "orderflow/internal/errors"
)

// State is the view mode of a session.
type State int

const (
	StateLive State = iota
	StateReplay
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "LIVE"
	case StateReplay:
		return "REPLAY"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	DefaultWindow     = 120 * time.Second
	DefaultBucketSize = 5 * time.Second
	DefaultMaxTrades  = 50_000
)

// Config describes one session. Zero values fall back to the defaults above.
type Config struct {
	Symbol              string
	Window              time.Duration
	BucketSize          time.Duration
	PriceStep           *float64
	FallbackStep        float64
	MinQuantity         float64
	LargeTradeThreshold float64
	MaxTrades           int
	Now                 func() time.Time
}

// RollingWindowSession buffers the recent trades of one symbol for one observer.
// Appends, cursor moves and view reads are serialized by a single mutex; every
// view is recomputed from the buffer on read.
type RollingWindowSession struct {
	mu     sync.Mutex
	cfg    Config
	trades []marketdata.Trade
	seen   map[string]struct{}
	state  State
	cursor int64
}

func New(cfg Config) *RollingWindowSession {
	cfg.Symbol = instruments.NormalizeSymbol(cfg.Symbol)
	// Bars are built on a whole-second grid, so both sizes are kept in whole seconds.
	if cfg.Window < time.Second {
		cfg.Window = DefaultWindow
	}
	cfg.Window = cfg.Window.Truncate(time.Second)
	if cfg.BucketSize < time.Second {
		cfg.BucketSize = DefaultBucketSize
	}
	cfg.BucketSize = cfg.BucketSize.Truncate(time.Second)
	if cfg.MaxTrades <= 0 {
		cfg.MaxTrades = DefaultMaxTrades
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RollingWindowSession{cfg: cfg, seen: make(map[string]struct{})}
}

func (s *RollingWindowSession) Symbol() string {
	return s.cfg.Symbol
}

func (s *RollingWindowSession) Window() time.Duration {
	return s.cfg.Window
}

// Append adds trades, skipping ones already buffered, then evicts everything older
// than the newest trade minus the window. Eviction runs in both states.
func (s *RollingWindowSession) Append(trades ...marketdata.Trade) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	outOfOrder := false
	for _, t := range trades {
		key := t.Key()
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		if n := len(s.trades); n > 0 && t.TimestampMs < s.trades[n-1].TimestampMs {
			outOfOrder = true
		}
		s.trades = append(s.trades, t)
		added++
	}
	if added == 0 {
		return 0
	}
	if outOfOrder {
		sort.SliceStable(s.trades, func(i, j int) bool {
			return s.trades[i].TimestampMs < s.trades[j].TimestampMs
		})
	}
	s.evictLocked()
	if s.state == StateReplay {
		s.cursor = s.clampLocked(s.cursor)
	}
	return added
}

func (s *RollingWindowSession) evictLocked() {
	if len(s.trades) == 0 {
		return
	}
	floor := s.trades[len(s.trades)-1].TimestampMs - s.cfg.Window.Milliseconds()
	cut := sort.Search(len(s.trades), func(i int) bool {
		return s.trades[i].TimestampMs >= floor
	})
	if over := len(s.trades) - s.cfg.MaxTrades; over > cut {
		cut = over
	}
	if cut == 0 {
		return
	}
	for _, t := range s.trades[:cut] {
		delete(s.seen, t.Key())
	}
	s.trades = append(s.trades[:0:0], s.trades[cut:]...)
}

// ToggleReplay switches between LIVE and REPLAY. Both transitions put the cursor
// on the newest buffered trade.
func (s *RollingWindowSession) ToggleReplay(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		if s.state == StateReplay {
			return
		}
		s.state = StateReplay
	} else {
		s.state = StateLive
	}
	s.cursor = s.newestLocked()
}

// SetCursor moves the replay cursor, clamped into the buffered range, and returns
// the effective position. It is rejected in LIVE state.
func (s *RollingWindowSession) SetCursor(ts int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReplay {
		return 0, apperrors.Validation("not_in_replay", "cursor can only be moved in replay mode")
	}
	s.cursor = s.clampLocked(ts)
	return s.cursor, nil
}

// Step advances the replay cursor by n buckets (negative moves back).
func (s *RollingWindowSession) Step(n int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReplay {
		return 0, apperrors.Validation("not_in_replay", "cursor can only be moved in replay mode")
	}
	s.cursor = s.clampLocked(s.cursor + int64(n)*s.cfg.BucketSize.Milliseconds())
	return s.cursor, nil
}

func (s *RollingWindowSession) SetMinQuantity(q float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q < 0 {
		q = 0
	}
	s.cfg.MinQuantity = q
}

func (s *RollingWindowSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the replay cursor, or false while the session follows the live tip.
func (s *RollingWindowSession) Cursor() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReplay {
		return 0, false
	}
	return s.cursor, true
}

func (s *RollingWindowSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// Visible returns a copy of the trades the current view is computed from.
func (s *RollingWindowSession) Visible() []marketdata.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

func (s *RollingWindowSession) Bars() ([]marketdata.FootprintBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.barsLocked(s.visibleLocked())
}

func (s *RollingWindowSession) CumulativeDelta() ([]marketdata.CumulativeDeltaPoint, error) {
	bars, err := s.Bars()
	if err != nil {
		return nil, err
	}
	return footprint.CumulativeDelta(bars, 0), nil
}

func (s *RollingWindowSession) VolumeBuckets() ([]marketdata.VolumeBucket, error) {
	bars, err := s.Bars()
	if err != nil {
		return nil, err
	}
	return footprint.BarVolumeBuckets(bars), nil
}

// Snapshot is every derived view of a session computed from one consistent buffer.
type Snapshot struct {
	Symbol          string                            `json:"symbol"`
	State           State                             `json:"state"`
	Cursor          *int64                            `json:"cursor"`
	Oldest          int64                             `json:"oldest"`
	Newest          int64                             `json:"newest"`
	TradeCount      int                               `json:"tradeCount"`
	Bars            []marketdata.FootprintBar         `json:"bars"`
	CumulativeDelta []marketdata.CumulativeDeltaPoint `json:"cumulativeDelta"`
	VolumeBuckets   []marketdata.VolumeBucket         `json:"volumeBuckets"`
	LargeTrades     []marketdata.Trade                `json:"largeTrades"`
}

func (s *RollingWindowSession) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := s.visibleLocked()
	bars, err := s.barsLocked(visible)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Symbol:          s.cfg.Symbol,
		State:           s.state,
		TradeCount:      len(visible),
		Bars:            bars,
		CumulativeDelta: footprint.CumulativeDelta(bars, 0),
		VolumeBuckets:   footprint.BarVolumeBuckets(bars),
		LargeTrades:     []marketdata.Trade{},
	}
	if s.state == StateReplay {
		c := s.cursor
		snap.Cursor = &c
	}
	if len(s.trades) > 0 {
		snap.Oldest = s.trades[0].TimestampMs
		snap.Newest = s.trades[len(s.trades)-1].TimestampMs
	}
	if s.cfg.LargeTradeThreshold > 0 {
		for _, t := range visible {
			if t.Quantity >= s.cfg.LargeTradeThreshold {
				snap.LargeTrades = append(snap.LargeTrades, t)
			}
		}
	}
	return snap, nil
}

func (s *RollingWindowSession) visibleLocked() []marketdata.Trade {
	end := len(s.trades)
	if s.state == StateReplay {
		cursor := s.clampLocked(s.cursor)
		end = sort.Search(len(s.trades), func(i int) bool {
			return s.trades[i].TimestampMs > cursor
		})
	}
	out := make([]marketdata.Trade, 0, end)
	for _, t := range s.trades[:end] {
		if s.cfg.MinQuantity > 0 && t.Quantity < s.cfg.MinQuantity {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *RollingWindowSession) barsLocked(visible []marketdata.Trade) ([]marketdata.FootprintBar, error) {
	bucketMs := s.cfg.BucketSize.Milliseconds()
	tip := s.cfg.Now().UnixMilli()
	if s.state == StateReplay {
		tip = s.clampLocked(s.cursor)
	} else if n := len(s.trades); n > 0 {
		tip = s.trades[n-1].TimestampMs
	}
	win := footprint.Window{
		Seconds:       int64(s.cfg.Window / time.Second),
		BucketSeconds: int64(s.cfg.BucketSize / time.Second),
		ReferenceMs:   footprint.AlignDown(tip, bucketMs) + bucketMs,
	}
	return footprint.AggregateWindow(visible, win, s.cfg.PriceStep, s.cfg.FallbackStep)
}

func (s *RollingWindowSession) newestLocked() int64 {
	if len(s.trades) == 0 {
		return 0
	}
	return s.trades[len(s.trades)-1].TimestampMs
}

func (s *RollingWindowSession) clampLocked(ts int64) int64 {
	if len(s.trades) == 0 {
		return ts
	}
	oldest, newest := s.trades[0].TimestampMs, s.trades[len(s.trades)-1].TimestampMs
	if ts < oldest {
		return oldest
	}
	if ts > newest {
		return newest
	}
	return ts
}
