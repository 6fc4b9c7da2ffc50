// Package router classifies inbound WebSocket envelopes into typed events.
//
// An envelope carries a batch of topic-tagged entries. Entries on
// "instrument:<id>" become rate events, entries on "private" become trading
// events and everything else is passed through as unknown.
//
// Parsing is pure and keeps input order. A recognised entry whose content
// cannot be decoded is skipped: the remaining entries are still returned and
// each skipped entry is reported as an *EntryError joined into the error.
package router
