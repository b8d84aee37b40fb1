package chdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CompanySource resolves company numbers to registry snapshots.
type CompanySource interface {
	CompanyProfile(ctx context.Context, companyNumber string) (*CompanySnapshot, error)
}

// StatementFetcher locates and downloads statement documents from the
// registry for companies processed directly by number.
type StatementFetcher interface {
	LatestFullStatement(ctx context.Context, companyNumber string) (*FilingRef, error)
	DownloadStatement(ctx context.Context, metadataURL string) ([]byte, error)
}

// Result aggregates the outcome of one corpus run.
type Result struct {
	Processed int
	Created   int
	Updated   int
	Failed    int
	Errors    []error
}

func (r *Result) recordFailure(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// CorpusDriver runs documents through parse, assemble, and persist. Each
// document is isolated: a failure is recorded in the Result and the run
// continues with the next document.
type CorpusDriver struct {
	source    CompanySource
	fetcher   StatementFetcher
	store     Store
	assembler *Assembler
	logger    *slog.Logger
}

// NewCorpusDriver wires a driver. The fetcher may be nil when only
// archive-based processing is needed.
func NewCorpusDriver(source CompanySource, fetcher StatementFetcher, store Store, logger *slog.Logger) *CorpusDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusDriver{
		source:    source,
		fetcher:   fetcher,
		store:     store,
		assembler: NewAssembler(logger),
		logger:    logger,
	}
}

// ProcessDocuments runs a slice of filing documents through the pipeline.
func (d *CorpusDriver) ProcessDocuments(ctx context.Context, docs []FilingDocument) *Result {
	result := &Result{}
	for i := range docs {
		if err := ctx.Err(); err != nil {
			result.recordFailure(err)
			return result
		}
		d.processDocument(ctx, &docs[i], result)
	}
	return result
}

func (d *CorpusDriver) processDocument(ctx context.Context, doc *FilingDocument, result *Result) {
	parsed, err := ParseFilingDocument(doc.Content)
	if err != nil {
		d.logger.Warn("document parse failed", "name", doc.Name, "error", err)
		result.recordFailure(fmt.Errorf("document %s: %w", doc.Name, err))
		return
	}

	snapshot, err := d.source.CompanyProfile(ctx, doc.CompanyNumber)
	if err != nil {
		d.logger.Warn("company lookup failed", "company", doc.CompanyNumber, "error", err)
		result.recordFailure(fmt.Errorf("document %s: %w", doc.Name, err))
		return
	}

	statement, err := d.assembler.Assemble(doc, parsed, snapshot)
	if err != nil {
		d.logger.Warn("statement assembly failed", "name", doc.Name, "error", err)
		result.recordFailure(fmt.Errorf("document %s: %w", doc.Name, err))
		return
	}

	created, err := d.store.UpsertStatement(ctx, statement)
	if err != nil {
		d.logger.Error("statement upsert failed", "company", statement.CompanyNumber, "error", err)
		result.recordFailure(fmt.Errorf("document %s: %w", doc.Name, err))
		return
	}

	result.Processed++
	if created {
		result.Created++
	} else {
		result.Updated++
	}
	d.logger.Info("statement stored",
		"company", statement.CompanyNumber,
		"period_end", statement.PeriodEnd,
		"created", created)
}

// ProcessArchive reads one bulk accounts zip and processes every eligible
// document in it.
func (d *CorpusDriver) ProcessArchive(ctx context.Context, path string) (*Result, error) {
	docs, err := ReadArchive(path, d.logger)
	if err != nil {
		return nil, err
	}
	return d.ProcessDocuments(ctx, docs), nil
}

// ProcessArchiveDir processes every zip archive in a directory, merging the
// per-archive results.
func (d *CorpusDriver) ProcessArchiveDir(ctx context.Context, dir string) (*Result, error) {
	paths, err := ArchivePaths(dir)
	if err != nil {
		return nil, err
	}

	total := &Result{}
	for _, path := range paths {
		r, err := d.ProcessArchive(ctx, path)
		if err != nil {
			d.logger.Error("archive failed", "path", path, "error", err)
			total.recordFailure(err)
			continue
		}
		total.Processed += r.Processed
		total.Created += r.Created
		total.Updated += r.Updated
		total.Failed += r.Failed
		total.Errors = append(total.Errors, r.Errors...)
	}
	return total, nil
}

// ProcessCompanies fetches and processes the latest full statement for each
// company number directly from the registry.
func (d *CorpusDriver) ProcessCompanies(ctx context.Context, companyNumbers []string) *Result {
	result := &Result{}
	for _, number := range companyNumbers {
		if err := ctx.Err(); err != nil {
			result.recordFailure(err)
			return result
		}
		d.processCompany(ctx, number, result)
	}
	return result
}

func (d *CorpusDriver) processCompany(ctx context.Context, companyNumber string, result *Result) {
	if d.fetcher == nil {
		result.recordFailure(fmt.Errorf("company %s: no statement fetcher configured", companyNumber))
		return
	}

	ref, err := d.fetcher.LatestFullStatement(ctx, companyNumber)
	if err != nil {
		if errors.Is(err, ErrNoStatementDocument) {
			d.logger.Info("no statement document", "company", companyNumber)
		} else {
			d.logger.Warn("filing lookup failed", "company", companyNumber, "error", err)
		}
		result.recordFailure(err)
		return
	}

	content, err := d.fetcher.DownloadStatement(ctx, ref.MetadataURL)
	if err != nil {
		d.logger.Warn("statement download failed", "company", companyNumber, "error", err)
		result.recordFailure(fmt.Errorf("company %s: %w", companyNumber, err))
		return
	}

	doc := FilingDocument{
		Name:          companyNumber + "_" + ref.Date,
		CompanyNumber: companyNumber,
		FilingDate:    ref.Date,
		Content:       content,
	}
	d.processDocument(ctx, &doc, result)
}
