package clickhouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

// DefaultBatchSize bounds the rows sent per INSERT.
const DefaultBatchSize = 10000

type appender interface {
	Append(v ...any) error
}

// InsertSnapshots writes snaps in batches of batchSize rows.
func (s *Source) InsertSnapshots(ctx context.Context, snaps []lob.Snapshot, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	written := 0
	for start := 0; start < len(snaps); start += batchSize {
		end := min(start+batchSize, len(snaps))
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.cfg.qualifiedTable())
		if err != nil {
			return written, fmt.Errorf("prepare batch: %w", err)
		}
		if err := appendSnapshots(batch, snaps[start:end]); err != nil {
			batch.Abort()
			return written, err
		}
		if err := batch.Send(); err != nil {
			return written, fmt.Errorf("send batch: %w", err)
		}
		written += end - start
		s.logger.Debug("Flushed snapshot batch", zap.Int("rows", end-start), zap.Int("total", written))
	}
	return written, nil
}

func appendSnapshots(b appender, snaps []lob.Snapshot) error {
	for _, s := range snaps {
		err := b.Append(
			s.Symbol,
			s.Timestamp,
			s.BidPrices[:],
			s.BidSizes[:],
			s.AskPrices[:],
			s.AskSizes[:],
			s.MidPrice,
			s.Spread,
		)
		if err != nil {
			return fmt.Errorf("append %s@%d: %w", s.Symbol, s.Timestamp, err)
		}
	}
	return nil
}
