// Package sweeper menjalankan sapuan periodik atas order yang lewat deadline
// pembayaran. Sweeper hanya optimasi liveness: kebenaran status dijamin lazy
// expiry di jalur baca, jadi satu tick gagal bukan bencana.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer adalah irisan lifecycle manager yang dibutuhkan sweeper.
type Expirer interface {
	// ExpireDue memproses maksimal limit order jatuh tempo, mengembalikan
	// jumlah yang diambil (bukan yang berhasil; kalah race itu wajar).
	ExpireDue(ctx context.Context, limit int) (int, error)
}

type Sweeper struct {
	svc      Expirer
	interval time.Duration
	limit    int
	timeout  time.Duration
	log      *zap.Logger
}

func New(svc Expirer, interval time.Duration, limit int, log *zap.Logger) *Sweeper {
	if limit <= 0 {
		limit = 100
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		limit:    limit,
		timeout:  interval, // satu tick tidak boleh melewati tick berikutnya
		log:      log.Named("expiry-sweeper"),
	}
}

// Run blok sampai ctx selesai.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep memproses order jatuh tempo per halaman sampai habis atau timeout.
func (s *Sweeper) sweep(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for {
		n, err := s.svc.ExpireDue(tctx, s.limit)
		if err != nil {
			s.log.Warn("sweep", zap.Error(err))
			return
		}
		if n < s.limit {
			return
		}
	}
}
