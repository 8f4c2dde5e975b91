package timesync

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// NTPProvider fetches authoritative time from an NTP server.
type NTPProvider struct {
	Server string
}

// Fetch queries the server once and returns the offset-corrected current
// time. The query blocks but is bounded by timeout; ctx cancellation is
// checked before issuing the query (the wire exchange itself is a single
// bounded UDP round trip).
func (p NTPProvider) Fetch(ctx context.Context, timeout time.Duration) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	resp, err := ntp.QueryWithOptions(p.Server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, fmt.Errorf("ntp query %s: %w", p.Server, err)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("ntp response from %s invalid: %w", p.Server, err)
	}

	return time.Now().Add(resp.ClockOffset), nil
}
