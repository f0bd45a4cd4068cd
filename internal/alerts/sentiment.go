package alerts

import (
	"context"
	"time"

	"github.com/web3-frozen/chainwatch/internal/cooldown"
	"github.com/web3-frozen/chainwatch/internal/delegate"
	"github.com/web3-frozen/chainwatch/internal/kv"
	"github.com/web3-frozen/chainwatch/internal/monitor/sources"
)

// Sentiment alerts when the fear & greed index enters an extreme zone.
// Leaving the zone re-arms the trigger silently.
type Sentiment struct {
	delegate.Delegates

	trigger *cooldown.BiTrigger
}

// NewSentiment returns the detector. Each state must hold for dwell before
// a switch to the other one counts.
func NewSentiment(store kv.Store, dwell time.Duration, opts ...cooldown.Option) *Sentiment {
	return &Sentiment{
		trigger: cooldown.NewBiTrigger(store, "FearGreedExtreme", dwell, dwell, false, opts...),
	}
}

func (s *Sentiment) OnData(ctx context.Context, _ any, data any) error {
	idx, ok := data.(sources.FearGreedIndex)
	if !ok {
		return nil
	}
	extreme := idx.Extreme()
	fired, err := s.trigger.Turn(ctx, extreme)
	if err != nil {
		return err
	}
	if !fired || !extreme {
		return nil
	}
	return s.Publish(ctx, s, SentimentAlert{Value: idx.Value, Classification: idx.Classification})
}
