// Package processor runs one batch: read the input sheet, look up every
// row's identifier in sequence and write the enriched sheet.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobesa/go-domain-util/domainutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/miyaichi/sincera-data-processor/pkg/cache"
	"github.com/miyaichi/sincera-data-processor/pkg/publisher"
	"github.com/miyaichi/sincera-data-processor/pkg/sheet"
)

// Identifier column names, matched case-insensitively.
const (
	ColumnDomain      = "domain"
	ColumnPublisherID = "publisher_id"
)

var (
	// ErrMissingIdentifierColumns is returned when the input has neither a
	// domain nor a publisher_id column.
	ErrMissingIdentifierColumns = errors.New("input must contain a 'publisher_id' or 'domain' column")

	// ErrInterrupted is returned when the run was cancelled. Rows gathered
	// before the cancellation are still written.
	ErrInterrupted = errors.New("run interrupted")
)

var rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sincera_rows_total",
	Help: "Total input rows by outcome (success, failed, skipped)",
}, []string{"status"})

// Lookuper performs a single publisher lookup.
type Lookuper interface {
	Lookup(ctx context.Context, req publisher.LookupRequest) publisher.LookupResult
}

// Summary describes a finished run.
type Summary struct {
	Rows       int
	Succeeded  int
	Failed     int
	Skipped    int
	MemoHits   int
	OutputPath string
	Duration   time.Duration
}

// Processor drives the sequential batch flow.
type Processor struct {
	client Lookuper
	memo   *cache.Memo
	logger zerolog.Logger
}

// New creates a processor around client.
func New(client Lookuper, logger zerolog.Logger) *Processor {
	if client == nil {
		panic("lookup client cannot be nil")
	}
	return &Processor{
		client: client,
		memo:   cache.NewMemo(),
		logger: logger,
	}
}

// Run processes inputPath and writes the results next to it. Per-row lookup
// failures are recorded in the output; only input, output and cancellation
// errors are returned.
func (p *Processor) Run(ctx context.Context, inputPath string) (Summary, error) {
	start := time.Now()
	summary := Summary{OutputPath: sheet.OutputPath(inputPath)}

	table, err := sheet.Read(inputPath)
	if err != nil {
		return summary, fmt.Errorf("read input: %w", err)
	}

	domainCol := table.Column(ColumnDomain)
	idCol := table.Column(ColumnPublisherID)
	if domainCol < 0 && idCol < 0 {
		return summary, ErrMissingIdentifierColumns
	}

	summary.Rows = len(table.Rows)
	p.logger.Info().
		Str("input", inputPath).
		Int("rows", summary.Rows).
		Bool("has_domain_column", domainCol >= 0).
		Bool("has_publisher_id_column", idCol >= 0).
		Msg("Input loaded")

	results := make([]publisher.LookupResult, 0, len(table.Rows))
	interrupted := false

	for i := range table.Rows {
		row := i + 1
		req, ok := publisher.NewLookupRequest(row, table.Cell(i, domainCol), table.Cell(i, idCol))
		if !ok {
			summary.Skipped++
			rowsTotal.WithLabelValues("skipped").Inc()
			p.logger.Warn().
				Int("row", row).
				Int("total", summary.Rows).
				Msg("Skipping row - no publisher_id or domain")
			continue
		}

		if ctx.Err() != nil {
			interrupted = true
			break
		}

		res, hit := p.lookup(ctx, req, summary.Rows)
		if ctx.Err() != nil && !res.Success() {
			interrupted = true
			break
		}
		if hit {
			summary.MemoHits++
		}

		results = append(results, res)
		if res.Success() {
			summary.Succeeded++
			rowsTotal.WithLabelValues(publisher.StatusSuccess).Inc()
		} else {
			summary.Failed++
			rowsTotal.WithLabelValues(publisher.StatusFailed).Inc()
		}
	}

	header, rows := publisher.Aggregate(results)
	if err := sheet.Write(summary.OutputPath, header, rows); err != nil {
		return summary, fmt.Errorf("write output: %w", err)
	}

	summary.Duration = time.Since(start)

	if interrupted {
		p.logger.Warn().
			Int("written_rows", len(rows)).
			Str("output", summary.OutputPath).
			Msg("Run interrupted - partial results written")
		return summary, fmt.Errorf("%w after %d of %d rows: %w", ErrInterrupted, len(rows), summary.Rows, context.Cause(ctx))
	}

	p.logger.Info().
		Int("rows", summary.Rows).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("memo_hits", summary.MemoHits).
		Dur("duration", summary.Duration).
		Str("output", summary.OutputPath).
		Msg("Processing complete")

	return summary, nil
}

// lookup answers req from the memo or the client. hit reports a memo answer.
func (p *Processor) lookup(ctx context.Context, req publisher.LookupRequest, total int) (res publisher.LookupResult, hit bool) {
	logger := p.logger.With().
		Int("row", req.Row).
		Int("total", total).
		Str("identifier_kind", string(req.Kind)).
		Str("identifier", req.Value).
		Logger()

	if req.Kind == publisher.KindDomain && domainutil.Domain(req.Value) == "" {
		logger.Warn().Msg("Domain has no recognised public suffix - looking it up anyway")
	}

	if res, ok := p.memo.Get(req); ok {
		logger.Debug().Str("status", string(res.State)).Msg("Reusing earlier lookup")
		return res, true
	}

	res = p.client.Lookup(ctx, req)
	if ctx.Err() == nil {
		p.memo.Set(req, res)
	}

	if res.Success() {
		logger.Info().Int("attempts", res.Attempts).Msg("Lookup succeeded")
	} else {
		logger.Warn().Int("attempts", res.Attempts).Str("error", res.Reason()).Msg("Lookup failed")
	}
	return res, false
}
