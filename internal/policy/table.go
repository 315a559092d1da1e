package policy

import (
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-monitor/internal/domain"
	"github.com/spec-kit/sla-monitor/internal/observability"
)

// Clocks maps an SLA clock name to its duration in seconds.
type Clocks map[string]int64

// Document is a full policy: priority -> tier -> clocks.
type Document map[string]map[string]Clocks

// Clock is one resolved SLA clock.
type Clock struct {
	Name     string
	Duration time.Duration
}

type snapshot struct {
	doc      Document
	source   string
	loadedAt time.Time
}

// Table holds the live policy. Lookups never observe a partially applied reload:
// a reload builds a new snapshot and publishes it with a single pointer swap.
type Table struct {
	current atomic.Pointer[snapshot]
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewTable returns an empty table. Tickets resolve no clocks until the first Reload.
func NewTable(logger *zap.Logger, metrics *observability.Metrics) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Table{logger: logger, metrics: metrics}
	t.current.Store(&snapshot{doc: Document{}})
	return t
}

// Lookup returns the clocks configured for a (priority, tier) pair, sorted by name.
// An unknown pair yields an empty slice.
func (t *Table) Lookup(priority domain.TicketPriority, tier domain.CustomerTier) []Clock {
	snap := t.current.Load()
	tiers, ok := snap.doc[domain.NormalizeKey(string(priority))]
	if !ok {
		return nil
	}
	clocks := tiers[domain.NormalizeKey(string(tier))]
	if len(clocks) == 0 {
		return nil
	}

	out := make([]Clock, 0, len(clocks))
	for name, secs := range clocks {
		out = append(out, Clock{Name: name, Duration: time.Duration(secs) * time.Second})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reload reads and parses src, then swaps it in. On any error the previous
// table stays live and the error is returned.
func (t *Table) Reload(src Source) error {
	data, err := src.Read()
	if err != nil {
		t.rejected(src, err)
		return err
	}
	doc, err := Parse(data, src.Format())
	if err != nil {
		t.rejected(src, err)
		return err
	}

	t.current.Store(&snapshot{doc: doc, source: src.Name(), loadedAt: time.Now().UTC()})
	t.metrics.RecordPolicyReload(true)
	t.logger.Info("sla policy loaded",
		zap.String("source", src.Name()),
		zap.Int("priorities", len(doc)))
	return nil
}

func (t *Table) rejected(src Source, err error) {
	t.metrics.RecordPolicyReload(false)
	t.logger.Warn("sla policy rejected; keeping previous table",
		zap.String("source", src.Name()),
		zap.Error(err))
}

// Snapshot returns a deep copy of the live document with its load metadata.
func (t *Table) Snapshot() (Document, string, time.Time) {
	snap := t.current.Load()
	out := make(Document, len(snap.doc))
	for priority, tiers := range snap.doc {
		tierCopy := make(map[string]Clocks, len(tiers))
		for tier, clocks := range tiers {
			clockCopy := make(Clocks, len(clocks))
			for name, secs := range clocks {
				clockCopy[name] = secs
			}
			tierCopy[tier] = clockCopy
		}
		out[priority] = tierCopy
	}
	return out, snap.source, snap.loadedAt
}
