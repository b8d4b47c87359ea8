package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"currency_ledger/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultMaxAttempts is how many failed replays a record gets before it moves to DeadKey.
const DefaultMaxAttempts = 10

// Replayer drains the pending queue into the database on a fixed interval.
type Replayer struct {
	db          *gorm.DB
	rdb         redis.Cmdable
	interval    time.Duration
	batchSize   int
	maxAttempts int
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func NewReplayer(db *gorm.DB, rdb redis.Cmdable, interval time.Duration) *Replayer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Replayer{
		db:          db,
		rdb:         rdb,
		interval:    interval,
		batchSize:   100,
		maxAttempts: DefaultMaxAttempts,
		stopCh:      make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (r *Replayer) Start(ctx context.Context) {
	logrus.WithField("interval", r.interval.String()).Info("Audit replayer started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Audit replayer exiting on context cancel")
			return
		case <-r.stopCh:
			logrus.Info("Audit replayer stopped")
			return
		case <-ticker.C:
			r.replayPending(ctx)
		}
	}
}

func (r *Replayer) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// replayPending writes up to batchSize queued records and returns how many were written.
// The round ends at the first failed insert. The failed record goes to the tail of the
// queue, or to DeadKey once it has failed maxAttempts times.
func (r *Replayer) replayPending(ctx context.Context) int {
	written := 0
	for written < r.batchSize {
		raw, err := r.rdb.LPop(ctx, PendingKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return written
		}
		if err != nil {
			logrus.WithError(err).Error("Audit replayer could not read queue")
			return written
		}

		var p pendingRecord
		if err := json.Unmarshal(raw, &p); err != nil || p.Record.ID == "" {
			logrus.WithField("payload", string(raw)).Error("Audit replayer moved undecodable record to dead letter")
			if perr := r.rdb.RPush(ctx, DeadKey, raw).Err(); perr != nil {
				logrus.WithError(perr).Error("Audit replayer could not write dead letter")
			}
			continue
		}
		rec := p.Record

		if err := insert(ctx, r.db, &rec); err != nil {
			p.Attempts++
			r.requeue(ctx, p, err)
			return written
		}

		written++
		metrics.ObserveAuditReplay()
		logrus.WithFields(logrus.Fields{
			"record_id": rec.ID,
			"uuid":      rec.UUID,
			"action":    rec.Action,
			"attempts":  p.Attempts,
		}).Info("Audit record replayed")
	}
	return written
}

func (r *Replayer) requeue(ctx context.Context, p pendingRecord, cause error) {
	fields := logrus.Fields{
		"record_id": p.Record.ID,
		"uuid":      p.Record.UUID,
		"action":    p.Record.Action,
		"amount":    p.Record.Amount,
		"attempts":  p.Attempts,
		"error":     cause.Error(),
	}

	key := PendingKey
	if p.Attempts >= r.maxAttempts {
		key = DeadKey
		logrus.WithFields(fields).Error("Audit replay gave up, record moved to dead letter")
	} else {
		logrus.WithFields(fields).Warn("Audit replay insert failed, record moved to tail")
	}

	if err := push(ctx, r.rdb, key, p); err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Error("Audit replayer lost record")
	}
}
