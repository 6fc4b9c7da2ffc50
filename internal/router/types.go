package router

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/rickgao/tradeapi/internal/model"
)

// Topic names and prefixes used on the wire.
const (
	TopicPrivate          = "private"
	TopicInstrumentPrefix = "instrument:"
)

// InstrumentTopic returns the rate topic for an instrument.
func InstrumentTopic(instrumentID int64) string {
	return fmt.Sprintf("%s%d", TopicInstrumentPrefix, instrumentID)
}

// Envelope is one data frame: a batch of topic-tagged entries.
type Envelope struct {
	Messages []Entry `json:"messages"`
}

// Entry is a single message inside an envelope. Content is either a JSON
// object or a string holding encoded JSON.
type Entry struct {
	Topic   string          `json:"topic"`
	Content json.RawMessage `json:"content"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
}

// Kind classifies a parsed entry.
type Kind int

const (
	KindUnknown Kind = iota
	KindRate
	KindPrivate
)

func (k Kind) String() string {
	switch k {
	case KindRate:
		return "rate"
	case KindPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Event is a classified entry. Exactly one of Rate, Private or Raw is
// meaningful, selected by Kind.
type Event struct {
	Kind         Kind
	Topic        string
	InstrumentID int64
	Rate         model.Rate
	Private      model.PrivateEvent
	Raw          Entry
}

// EntryError reports an entry that was recognised but could not be decoded.
type EntryError struct {
	Index int
	Topic string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d (%s): %v", e.Index, e.Topic, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
