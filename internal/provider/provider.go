// Package provider holds the source adapters: outbound fetchers for RSS
// headlines and intraday price bars. Adapters carry no business logic; they
// validate structure, drop malformed records with a count, and surface
// transient provider failures as ErrSourceUnavailable so one ticker's outage
// never aborts a cycle.
package provider

import "errors"

// ErrSourceUnavailable marks a transient provider failure (network error,
// timeout, non-200 response). Callers skip the ticker and retry on the next
// cycle; nothing was marked seen, so no data is lost.
var ErrSourceUnavailable = errors.New("source unavailable")

// FetchStats counts records dropped during a fetch for cycle-level logging.
type FetchStats struct {
	Malformed int
}
