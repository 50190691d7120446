// Package conversion turns amounts in mixed currencies into a single
// currency, falling back through progressively less accurate strategies when
// the remote currency service misbehaves.
//
// Bulk tiers, in order:
//  1. trivial sum when every amount is already in the target currency
//  2. no result at all for an empty input
//  3. one bulk remote conversion
//  4. one remote conversion per currency
//  5. the naive unconverted sum
//
// Degraded is set when some amounts could not be converted: they are either
// missing from a per-item total or added unconverted by the naive sum.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/exchange/crossrate"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBulkTimeout        = 5 * time.Second
	DefaultPerItemTimeout     = 3 * time.Second
	DefaultSingleTimeout      = 3 * time.Second
	DefaultPerItemConcurrency = 4
)

// Remote is the part of the currency service the orchestrator calls.
type Remote interface {
	exchange.Converter
	exchange.BulkConverter
}

// RateSource supplies rate tables for the local cross-rate fallback.
type RateSource interface {
	GetRates(ctx context.Context, base money.Code, targets []money.Code) (*core.RateSnapshot, error)
}

// Options tunes a Service. Zero durations and concurrency select defaults.
type Options struct {
	BaseCurrency       money.Code
	BulkTimeout        time.Duration
	PerItemTimeout     time.Duration
	SingleTimeout      time.Duration
	PerItemConcurrency int
	LocalFallback      bool
}

func (o Options) withDefaults() Options {
	if o.BaseCurrency == "" {
		o.BaseCurrency = crossrate.DefaultBase
	}
	if o.BulkTimeout <= 0 {
		o.BulkTimeout = DefaultBulkTimeout
	}
	if o.PerItemTimeout <= 0 {
		o.PerItemTimeout = DefaultPerItemTimeout
	}
	if o.SingleTimeout <= 0 {
		o.SingleTimeout = DefaultSingleTimeout
	}
	if o.PerItemConcurrency <= 0 {
		o.PerItemConcurrency = DefaultPerItemConcurrency
	}
	return o
}

// Service orchestrates single and bulk conversions.
type Service struct {
	remote Remote
	rates  RateSource
	opts   Options
	logger *slog.Logger
}

// New creates a conversion service. rates may be nil, which disables the
// local cross-rate fallback of Convert.
func New(remote Remote, rates RateSource, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		remote: remote,
		rates:  rates,
		opts:   opts.withDefaults(),
		logger: logger.With("component", "conversion"),
	}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// ConvertBulk converts amounts into a single total in currency to.
// An empty input yields (nil, nil). The only errors are malformed input and
// cancellation of ctx.
func (s *Service) ConvertBulk(
	ctx context.Context,
	amounts core.Amounts,
	to money.Code,
) (*core.BulkResult, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: %q", money.ErrInvalidCurrency, to)
	}
	if err := amounts.Validate(); err != nil {
		return nil, err
	}
	amounts = amounts.Merge()
	log := s.logger.With("op", "convert_bulk", "to", to, "currencies", len(amounts))

	if len(amounts) == 0 {
		log.Debug("No amounts to convert")
		return nil, nil
	}

	if amounts.AllIn(to) {
		return s.bulkResult(amounts, to, amounts.Sum(), core.TierTrivial), nil
	}

	res, err := s.bulkTier(ctx, amounts, to)
	if err == nil {
		log.Debug("Converted with bulk remote call", "total", res.Total)
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	log.Warn("Bulk conversion failed, trying per-item conversion", "error", err)

	res, err = s.perItemTier(ctx, amounts, to)
	if err == nil {
		if res.Degraded {
			log.Warn("Per-item conversion partially failed",
				"unconverted", res.Unconverted,
				"total", res.Total,
			)
		}
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	log.Warn("Per-item conversion failed, using naive sum", "error", err)

	res = s.bulkResult(amounts, to, amounts.Sum(), core.TierNaive)
	res.ConversionCount = 0
	res.Degraded = true
	for _, a := range amounts {
		if a.Currency != to {
			res.Unconverted = append(res.Unconverted, a.Currency)
		}
	}
	return res, nil
}

func (s *Service) bulkTier(
	ctx context.Context,
	amounts core.Amounts,
	to money.Code,
) (*core.BulkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.BulkTimeout)
	defer cancel()

	resp, err := s.remote.ConvertMultiple(ctx, amounts, to)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty bulk conversion response")
	}
	if !finite(resp.TotalConvertedAmount) {
		return nil, fmt.Errorf("%w: total %v", core.ErrInvalidAmount, resp.TotalConvertedAmount)
	}
	res := s.bulkResult(amounts, to, resp.TotalConvertedAmount, core.TierBulk)
	if resp.ConversionCount > 0 {
		res.ConversionCount = resp.ConversionCount
	}
	return res, nil
}

type itemOutcome struct {
	value float64
	err   error
}

// perItemTier converts each currency on its own, the target currency
// included, and sums the successful results. Failed items are left out of
// the total and listed in Unconverted. The tier fails only when every item
// failed. With a concurrency of 1 the calls are issued in input order.
func (s *Service) perItemTier(
	ctx context.Context,
	amounts core.Amounts,
	to money.Code,
) (*core.BulkResult, error) {
	outcomes := make([]itemOutcome, len(amounts))

	var g errgroup.Group
	g.SetLimit(s.opts.PerItemConcurrency)
	for i, item := range amounts {
		if ctx.Err() != nil {
			outcomes[i] = itemOutcome{err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.convertItem(ctx, item, to)
			return nil
		})
	}
	_ = g.Wait()

	var (
		total       = decimal.Zero
		converted   int
		failed      int
		unconverted []money.Code
		lastErr     error
	)
	for i, o := range outcomes {
		if o.err != nil {
			failed++
			lastErr = o.err
			unconverted = append(unconverted, amounts[i].Currency)
			s.logger.Debug("Per-item conversion failed",
				"from", amounts[i].Currency,
				"to", to,
				"error", o.err,
			)
			continue
		}
		converted++
		total = total.Add(decimal.NewFromFloat(o.value))
	}

	if converted == 0 {
		return nil, fmt.Errorf("all %d per-item conversions failed: %w", failed, lastErr)
	}

	res := s.bulkResult(amounts, to, total.InexactFloat64(), core.TierPerItem)
	res.ConversionCount = converted
	if failed > 0 {
		res.Degraded = true
		res.Unconverted = unconverted
	}
	return res, nil
}

func (s *Service) convertItem(ctx context.Context, item core.Amount, to money.Code) itemOutcome {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PerItemTimeout)
	defer cancel()

	resp, err := s.remote.Convert(ctx, item.Value, item.Currency, to)
	if err != nil {
		return itemOutcome{err: err}
	}
	if resp == nil || !finite(resp.ConvertedAmount) {
		return itemOutcome{err: fmt.Errorf("%w: bad conversion response", core.ErrInvalidAmount)}
	}
	return itemOutcome{value: resp.ConvertedAmount}
}

func (s *Service) bulkResult(
	amounts core.Amounts,
	to money.Code,
	total float64,
	tier core.Tier,
) *core.BulkResult {
	count := 0
	for _, a := range amounts {
		if a.Currency != to {
			count++
		}
	}
	return &core.BulkResult{
		Total:           total,
		Currency:        to,
		OriginalAmounts: amounts,
		ConversionCount: count,
		Tier:            tier,
	}
}

// Convert converts a single amount. It tries the remote service, then a
// local cross-rate from cached rates, and finally returns the original
// amount flagged as degraded.
func (s *Service) Convert(
	ctx context.Context,
	amount float64,
	from, to money.Code,
) (*core.ConversionResult, error) {
	if !from.IsValid() {
		return nil, fmt.Errorf("%w: %q", money.ErrInvalidCurrency, from)
	}
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: %q", money.ErrInvalidCurrency, to)
	}
	if !finite(amount) {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAmount, amount)
	}

	result := &core.ConversionResult{
		OriginalAmount:   amount,
		OriginalCurrency: from,
		Amount:           amount,
		Currency:         to,
	}
	log := s.logger.With("op", "convert", "from", from, "to", to)

	if from == to || amount == 0 {
		result.Tier = core.TierTrivial
		return result, nil
	}

	converted, err := s.convertRemote(ctx, amount, from, to)
	if err == nil {
		result.Amount = converted
		result.Tier = core.TierRemote
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	log.Warn("Remote conversion failed", "error", err)

	if s.opts.LocalFallback && s.rates != nil {
		converted, err = s.convertLocal(ctx, amount, from, to)
		if err == nil {
			log.Info("Converted with cached cross rate")
			result.Amount = converted
			result.Tier = core.TierCrossRate
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("Cross-rate conversion failed, returning original amount", "error", err)
	}

	result.Tier = core.TierOriginal
	result.Degraded = true
	return result, nil
}

func (s *Service) convertRemote(ctx context.Context, amount float64, from, to money.Code) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SingleTimeout)
	defer cancel()

	resp, err := s.remote.Convert(ctx, amount, from, to)
	if err != nil {
		return 0, err
	}
	if resp == nil || !finite(resp.ConvertedAmount) {
		return 0, fmt.Errorf("%w: bad conversion response", core.ErrInvalidAmount)
	}
	return resp.ConvertedAmount, nil
}

func (s *Service) convertLocal(ctx context.Context, amount float64, from, to money.Code) (float64, error) {
	snap, err := s.rates.GetRates(ctx, s.opts.BaseCurrency, nil)
	if err != nil {
		return 0, err
	}
	if snap == nil {
		return 0, core.ErrRateNotFound
	}
	return crossrate.Convert(amount, from, to, snap.Rates, snap.Base)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
