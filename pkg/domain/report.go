package domain

import (
	"sort"
	"sync"
)

// ReportBuilder accumulates per-run counters and row failures. It is safe for
// concurrent use by parallel offer writes within a chunk. Snapshot returns an
// immutable copy; the builder itself never leaves the run that owns it.
type ReportBuilder struct {
	mu       sync.Mutex
	report   RunReport
	failures []RowFailure
}

// NewReportBuilder returns an empty builder for one run.
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{}
}

// RecordMerchantCreated counts one newly created merchant.
func (b *ReportBuilder) RecordMerchantCreated() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.MerchantsCreated++
}

// RecordOfferCreated counts one created offer.
func (b *ReportBuilder) RecordOfferCreated() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.OffersCreated++
}

// RecordFailure counts one failed row with its reason.
func (b *ReportBuilder) RecordFailure(rowIndex int, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.RowsFailed++
	b.failures = append(b.failures, RowFailure{RowIndex: rowIndex, Reason: reason})
}

// Merge folds another report into this one.
func (b *ReportBuilder) Merge(r RunReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.MerchantsCreated += r.MerchantsCreated
	b.report.OffersCreated += r.OffersCreated
	b.report.RowsFailed += r.RowsFailed
	b.failures = append(b.failures, r.Errors...)
}

// Snapshot returns a copy of the report so far, failures ordered by row index.
func (b *ReportBuilder) Snapshot() RunReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.report
	if len(b.failures) > 0 {
		out.Errors = make([]RowFailure, len(b.failures))
		copy(out.Errors, b.failures)
		sort.SliceStable(out.Errors, func(i, j int) bool {
			return out.Errors[i].RowIndex < out.Errors[j].RowIndex
		})
	}
	return out
}
