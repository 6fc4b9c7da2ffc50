// Package model defines the domain types shared by the transport, the
// streaming session and the order tracker.
//
// Conventions:
//   - Prices, units and amounts: shopspring decimal values
//   - Timestamps: Timestamp, tolerant of empty and null wire values
//   - IDs: int64 for orders, positions and instruments
package model
