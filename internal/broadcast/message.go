package broadcast

import (
	"context"
	"sync"

	"github.com/web3-frozen/chainwatch/internal/locale"
	"github.com/web3-frozen/chainwatch/internal/messenger"
)

type Kind int

const (
	KindText Kind = iota
	KindPhoto
	KindSticker
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindSticker:
		return "sticker"
	default:
		return "unknown"
	}
}

// Message is one rendered notification. For photos Text is the caption.
type Message struct {
	Kind      Kind
	Text      string
	Photo     []byte
	PhotoName string
	StickerID string
}

// IsEmpty reports whether there is nothing to send.
func (m Message) IsEmpty() bool {
	switch m.Kind {
	case KindPhoto:
		return len(m.Photo) == 0
	case KindSticker:
		return m.StickerID == ""
	default:
		return m.Text == ""
	}
}

// Clone returns a copy that owns its photo bytes, so a send that consumes or
// mutates the buffer cannot affect the next destination.
func (m Message) Clone() Message {
	if m.Photo != nil {
		m.Photo = append([]byte(nil), m.Photo...)
	}
	return m
}

// MessageSource renders the message for one destination.
type MessageSource interface {
	Render(ctx context.Context, ch messenger.Channel, f locale.Formatter) (Message, error)
}

// SourceFunc adapts a function to MessageSource.
type SourceFunc func(ctx context.Context, ch messenger.Channel, f locale.Formatter) (Message, error)

func (fn SourceFunc) Render(ctx context.Context, ch messenger.Channel, f locale.Formatter) (Message, error) {
	return fn(ctx, ch, f)
}

// Text sends the same text everywhere.
func Text(s string) MessageSource {
	return Static(Message{Kind: KindText, Text: s})
}

// Static sends the same message everywhere.
func Static(m Message) MessageSource {
	return SourceFunc(func(context.Context, messenger.Channel, locale.Formatter) (Message, error) {
		return m, nil
	})
}

// PerLocale renders once per language and reuses the result.
func PerLocale(fn func(f locale.Formatter) Message) MessageSource {
	return &perLocale{fn: fn, cache: make(map[string]Message)}
}

type perLocale struct {
	fn    func(f locale.Formatter) Message
	mu    sync.Mutex
	cache map[string]Message
}

func (p *perLocale) Render(_ context.Context, _ messenger.Channel, f locale.Formatter) (Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.cache[f.Lang()]; ok {
		return m, nil
	}
	m := p.fn(f)
	p.cache[f.Lang()] = m
	return m, nil
}

// Producer renders per destination, possibly doing I/O.
func Producer(fn func(ctx context.Context, ch messenger.Channel, f locale.Formatter) (Message, error)) MessageSource {
	return SourceFunc(fn)
}
