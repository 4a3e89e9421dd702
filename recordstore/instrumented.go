package recordstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/ruteri/geodata-registry/metrics"
)

// InstrumentedStore decorates a RecordStore with operation counters and
// latency histograms. Semantics of the wrapped store are unchanged.
type InstrumentedStore struct {
	inner   interfaces.RecordStore
	metrics *metrics.MetricsServer
	log     *slog.Logger
}

func NewInstrumentedStore(inner interfaces.RecordStore, m *metrics.MetricsServer, log *slog.Logger) *InstrumentedStore {
	return &InstrumentedStore{
		inner:   inner,
		metrics: m,
		log:     log,
	}
}

// Outcome classifies a store error for metric labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, interfaces.ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, interfaces.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, interfaces.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	outcome := Outcome(err)
	s.metrics.StoreOps.WithLabelValues(op, outcome).Inc()
	s.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if outcome == "error" {
		s.log.Error("record store operation failed", "op", op, "err", err)
	} else if err != nil {
		s.log.Debug("record store operation rejected", "op", op, "outcome", outcome)
	}
}

func (s *InstrumentedStore) Store(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) (err error) {
	defer func(start time.Time) { s.observe("store", start, err) }(time.Now())
	return s.inner.Store(ctx, caller, id, cipherHash, metadataHash)
}

func (s *InstrumentedStore) Retrieve(ctx context.Context, caller interfaces.Identity, id string) (rec interfaces.Record, err error) {
	defer func(start time.Time) { s.observe("retrieve", start, err) }(time.Now())
	return s.inner.Retrieve(ctx, caller, id)
}

func (s *InstrumentedStore) UpdateData(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) (err error) {
	defer func(start time.Time) { s.observe("update_data", start, err) }(time.Now())
	return s.inner.UpdateData(ctx, caller, id, cipherHash, metadataHash)
}

func (s *InstrumentedStore) GrantAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) (err error) {
	defer func(start time.Time) { s.observe("grant_access", start, err) }(time.Now())
	return s.inner.GrantAccess(ctx, caller, id, grantee)
}

func (s *InstrumentedStore) RevokeAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) (err error) {
	defer func(start time.Time) { s.observe("revoke_access", start, err) }(time.Now())
	return s.inner.RevokeAccess(ctx, caller, id, grantee)
}

func (s *InstrumentedStore) CheckAccess(ctx context.Context, id string, who interfaces.Identity) (ok bool, err error) {
	defer func(start time.Time) { s.observe("check_access", start, err) }(time.Now())
	return s.inner.CheckAccess(ctx, id, who)
}

func (s *InstrumentedStore) ListAllIDs(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { s.observe("list_all_ids", start, err) }(time.Now())
	return s.inner.ListAllIDs(ctx)
}

func (s *InstrumentedStore) ListMyIDs(ctx context.Context, caller interfaces.Identity) (ids []string, err error) {
	defer func(start time.Time) { s.observe("list_my_ids", start, err) }(time.Now())
	return s.inner.ListMyIDs(ctx, caller)
}
