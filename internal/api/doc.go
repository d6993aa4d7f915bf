// Package api provides the REST client for the QuantPulse market-data backend.
//
// Endpoints (relative to the configured base URL):
//   - POST /instruments/load, GET /instruments/list
//   - POST /subscribe, POST /unsubscribe/{symbol}
//   - GET /price/{symbol}, /pnl/{symbol}, /indicators/{symbol}
//   - GET /snapshot/{symbol}[?timestamp=epoch]
//
// Requests are never retried. Transport failures surface as *NetworkError,
// non-2xx responses and undecodable bodies as *ServerError.
package api
