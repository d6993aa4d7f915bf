// Package model defines shared data types used across the QuantPulse monitor.
//
// Conventions:
//   - Prices and P&L: float64 in quote currency, as returned by the backend
//   - Timestamps: time.Time, decoded from epoch seconds on the wire
//   - Indicators: Optional values; "not yet computable" is never zero
package model
