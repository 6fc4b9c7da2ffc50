package router

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/rickgao/tradeapi/internal/model"
)

// ErrNotEnvelope is returned by ParseFrame for frames without a messages array.
var ErrNotEnvelope = errors.New("frame is not a message envelope")

// ParseFrame decodes a raw frame into an Envelope.
func ParseFrame(data []byte) (Envelope, error) {
	var probe struct {
		Messages *[]Entry `json:"messages"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if probe.Messages == nil {
		return Envelope{}, ErrNotEnvelope
	}
	return Envelope{Messages: *probe.Messages}, nil
}

// Parse classifies every entry of env in order. Entries that fail to decode
// are left out of the result and reported through the returned error.
func Parse(env Envelope) ([]Event, error) {
	events := make([]Event, 0, len(env.Messages))
	var errs []error

	for i, entry := range env.Messages {
		ev, err := parseEntry(entry)
		if err != nil {
			errs = append(errs, &EntryError{Index: i, Topic: entry.Topic, Err: err})
			continue
		}
		events = append(events, ev)
	}

	return events, errors.Join(errs...)
}

func parseEntry(entry Entry) (Event, error) {
	if entry.Topic == TopicPrivate {
		var ev model.PrivateEvent
		if err := decodeContent(entry.Content, &ev); err != nil {
			return Event{}, fmt.Errorf("decode private event: %w", err)
		}
		return Event{Kind: KindPrivate, Topic: entry.Topic, InstrumentID: ev.InstrumentID, Private: ev}, nil
	}

	if id, ok := instrumentID(entry.Topic); ok {
		rate, err := decodeRate(entry.Content)
		if err != nil {
			return Event{}, fmt.Errorf("decode rate: %w", err)
		}
		rate.InstrumentID = id
		return Event{Kind: KindRate, Topic: entry.Topic, InstrumentID: id, Rate: rate}, nil
	}

	return Event{Kind: KindUnknown, Topic: entry.Topic, Raw: entry}, nil
}

// instrumentID extracts the id from "instrument:<integer>".
func instrumentID(topic string) (int64, bool) {
	rest, ok := strings.CutPrefix(topic, TopicInstrumentPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// rateWire accepts PriceRateID as either a number or a string.
type rateWire struct {
	Ask           decimal.Decimal `json:"Ask"`
	Bid           decimal.Decimal `json:"Bid"`
	LastExecution decimal.Decimal `json:"LastExecution"`
	Date          model.Timestamp `json:"Date"`
	PriceRateID   json.RawMessage `json:"PriceRateID"`
}

func decodeRate(content json.RawMessage) (model.Rate, error) {
	var w rateWire
	if err := decodeContent(content, &w); err != nil {
		return model.Rate{}, err
	}
	return model.Rate{
		Ask:           w.Ask,
		Bid:           w.Bid,
		LastExecution: w.LastExecution,
		Date:          w.Date,
		PriceRateID:   rawString(w.PriceRateID),
	}, nil
}

// decodeContent unmarshals content, unwrapping one level of string encoding.
func decodeContent(content json.RawMessage, v any) error {
	content = bytes.TrimSpace(content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return errors.New("empty content")
	}
	if content[0] == '"' {
		var inner string
		if err := json.Unmarshal(content, &inner); err != nil {
			return err
		}
		content = json.RawMessage(inner)
	}
	return json.Unmarshal(content, v)
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s
	}
	return string(raw)
}
