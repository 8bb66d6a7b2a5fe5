package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

type SweepExpiredNoncesArgs struct {
	BatchSize  int `json:"batch_size,omitempty"`
	MaxBatches int `json:"max_batches,omitempty"`
}

func (SweepExpiredNoncesArgs) Kind() string { return "walletauth_sweep_expired_nonces" }

func (args SweepExpiredNoncesArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Minute,
			ByQueue:  true,
		},
	}
}

// NonceSweeper deletes expired nonces in bounded batches. pgstore.NonceStore implements it.
type NonceSweeper interface {
	SweepExpired(ctx context.Context, limit int) (int64, error)
}

// SweepExpiredNoncesWorker removes expired challenge nonces from stores without native expiry.
type SweepExpiredNoncesWorker struct {
	river.WorkerDefaults[SweepExpiredNoncesArgs]
	store NonceSweeper
	log   logrus.FieldLogger
}

func NewSweepExpiredNoncesWorker(store NonceSweeper, log logrus.FieldLogger) *SweepExpiredNoncesWorker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SweepExpiredNoncesWorker{store: store, log: log}
}

func (w *SweepExpiredNoncesWorker) Timeout(*river.Job[SweepExpiredNoncesArgs]) time.Duration {
	return 2 * time.Minute
}

func (w *SweepExpiredNoncesWorker) Work(ctx context.Context, job *river.Job[SweepExpiredNoncesArgs]) error {
	if w == nil || w.store == nil {
		return errors.New("walletauth sweep: nonce store not configured")
	}
	batch := job.Args.BatchSize
	if batch <= 0 {
		batch = 1000
	}
	maxBatches := job.Args.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 10
	}

	var total int64
	for i := 0; i < maxBatches; i++ {
		n, err := w.store.SweepExpired(ctx, batch)
		if err != nil {
			return err
		}
		total += n
		if n < int64(batch) {
			break
		}
	}
	if total > 0 {
		w.log.WithField("deleted", total).Info("walletauth: swept expired nonces")
	}
	return nil
}
