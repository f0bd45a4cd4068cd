package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/web3-frozen/chainwatch/internal/cooldown"
	"github.com/web3-frozen/chainwatch/internal/delegate"
	"github.com/web3-frozen/chainwatch/internal/kv"
	"github.com/web3-frozen/chainwatch/internal/monitor/sources"
)

// BlockStuck reports when the chain head stops advancing for longer than
// threshold, and again as soon as it resumes. The last seen height and when
// it changed are kept in the store next to the trigger so a restart does not
// lose the baseline.
type BlockStuck struct {
	delegate.Delegates

	store     kv.Store
	name      string
	trigger   *cooldown.BiTrigger
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewBlockStuck(store kv.Store, name string, threshold time.Duration, logger *slog.Logger, now func() time.Time) *BlockStuck {
	if now == nil {
		now = time.Now
	}
	return &BlockStuck{
		store:     store,
		name:      name,
		trigger:   cooldown.NewBiTrigger(store, "BlockStuck:"+name, 0, threshold, false, cooldown.WithClock(now)),
		threshold: threshold,
		logger:    logger,
		now:       now,
	}
}

func (b *BlockStuck) headKey() string { return "BlockStuck:" + b.name + ":head" }

func (b *BlockStuck) OnData(ctx context.Context, _ any, data any) error {
	bh, ok := data.(sources.BlockHeight)
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	h, err := b.store.HGetAll(ctx, b.headKey())
	if err != nil {
		return fmt.Errorf("load chain head %s: %w", b.name, err)
	}
	lastHeight, _ := strconv.ParseUint(h["height"], 10, 64)
	changedAt, _ := strconv.ParseInt(h["changed_at"], 10, 64)
	hasBaseline := changedAt > 0
	lastChange := time.Unix(0, changedAt)

	now := b.now()
	prevChange := lastChange
	if !hasBaseline || bh.Number > lastHeight {
		lastChange = now
		err := b.store.HSet(ctx, b.headKey(), map[string]string{
			"height":     strconv.FormatUint(bh.Number, 10),
			"changed_at": strconv.FormatInt(now.UnixNano(), 10),
		})
		if err != nil {
			return fmt.Errorf("save chain head %s: %w", b.name, err)
		}
	}
	if !hasBaseline {
		return nil
	}
	stalled := now.Sub(lastChange)

	stuck := stalled >= b.threshold
	fired, err := b.trigger.Turn(ctx, stuck)
	if err != nil {
		return err
	}
	if !fired {
		return nil
	}

	if stuck {
		b.logger.Warn("block production stalled", "height", bh.Number, "stalled", stalled)
		return b.Publish(ctx, b, BlockStuckAlert{Height: bh.Number, Stalled: stalled})
	}
	b.logger.Info("block production resumed", "height", bh.Number)
	return b.Publish(ctx, b, BlockResumedAlert{Height: bh.Number, Stalled: now.Sub(prevChange)})
}
