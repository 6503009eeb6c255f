package instruments

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"orderflow/internal/cache"
	domain "orderflow/internal/domain/entity/instruments"
	interfaces "orderflow/internal/domain/interfaces"
)

const (
	// DefaultTickSize is the last resort for symbols no source knows.
	DefaultTickSize = 0.01

	exchangeTickTTL = time.Hour
)

var ErrNilInstrument = errors.New("instrument is nil")

// Catalogue is static symbol metadata, such as config.Catalogue.
type Catalogue interface {
	TickSize(symbol string) (float64, bool)
}

// Service resolves the price increment of a symbol.
// Lookup order: repository, exchange, catalogue, default.
type Service struct {
	repo        interfaces.InstrumentsRepository
	fetcher     interfaces.TickSizeFetcher
	catalogue   Catalogue
	defaultTick float64
	cache       *cache.Cache
	logger      *logrus.Entry
}

// NewService wires the resolver. repo, fetcher, catalogue and c may be nil.
func NewService(repo interfaces.InstrumentsRepository, fetcher interfaces.TickSizeFetcher, catalogue Catalogue, defaultTick float64, c *cache.Cache, logger *logrus.Logger) *Service {
	if defaultTick <= 0 {
		defaultTick = DefaultTickSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		repo:        repo,
		fetcher:     fetcher,
		catalogue:   catalogue,
		defaultTick: defaultTick,
		cache:       c,
		logger:      logger.WithField("component", "instruments"),
	}
}

// TickSize returns the resolved tick size of symbol. It never fails.
func (s *Service) TickSize(ctx context.Context, symbol string) float64 {
	return s.Resolve(ctx, symbol).TickSize
}

// Resolve walks the sources in order and stores exchange and catalogue hits back in the repository.
func (s *Service) Resolve(ctx context.Context, symbol string) domain.Instrument {
	symbol = domain.NormalizeSymbol(symbol)
	log := s.logger.WithField("symbol", symbol)

	if s.repo != nil {
		instrument, err := s.repo.GetInstrument(ctx, symbol)
		switch {
		case err == nil && instrument.TickSize > 0:
			return *instrument
		case err != nil && !errors.Is(err, interfaces.ErrInstrumentNotFound):
			log.WithError(err).Warn("tick size lookup failed")
		}
	}

	if s.fetcher != nil {
		tick, err := cache.GetOrCompute(ctx, s.cache, "ticksize:"+symbol, exchangeTickTTL, func(ctx context.Context) (float64, error) {
			return s.fetcher.FetchTickSize(ctx, symbol)
		})
		if err == nil && tick > 0 {
			return s.remember(ctx, domain.Instrument{Symbol: symbol, TickSize: tick, Source: domain.TickSourceExchange})
		}
		if err != nil {
			log.WithError(err).Warn("exchange tick size fetch failed")
		}
	}

	if s.catalogue != nil {
		if tick, ok := s.catalogue.TickSize(symbol); ok && tick > 0 {
			return s.remember(ctx, domain.Instrument{Symbol: symbol, TickSize: tick, Source: domain.TickSourceCatalogue})
		}
	}

	return domain.Instrument{Symbol: symbol, TickSize: s.defaultTick, Source: domain.TickSourceDefault}
}

func (s *Service) remember(ctx context.Context, instrument domain.Instrument) domain.Instrument {
	instrument.UpdatedAt = time.Now().UTC()
	if s.repo == nil {
		return instrument
	}
	if err := s.repo.UpsertInstrument(ctx, &instrument); err != nil {
		s.logger.WithError(err).WithField("symbol", instrument.Symbol).Warn("store tick size failed")
	}
	return instrument
}

func (s *Service) UpsertInstrument(ctx context.Context, instrument *domain.Instrument) error {
	if instrument == nil {
		return ErrNilInstrument
	}
	if s.repo == nil {
		return errors.New("instruments repository is not configured")
	}
	return s.repo.UpsertInstrument(ctx, instrument)
}

func (s *Service) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	if s.repo == nil {
		return []domain.Instrument{}, nil
	}
	return s.repo.ListInstruments(ctx)
}

func (s *Service) Close() {
	if s.repo != nil {
		s.repo.Close()
	}
}
