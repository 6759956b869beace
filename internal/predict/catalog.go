package predict

import (
	"context"
	"fmt"

	"github.com/large-farva/passrelay/internal/catalog"
)

// ElementCatalog builds the tracked satellite set from fetched TLE sources.
type ElementCatalog struct {
	Store     *TLEStore
	Selection catalog.Selection
}

// Satellites fetches elements (forcing a network refresh when refresh is
// set) and applies the selection.
func (c *ElementCatalog) Satellites(ctx context.Context, refresh bool) ([]catalog.Satellite, error) {
	fetch := c.Store.Fetch
	if refresh {
		fetch = c.Store.ForceRefresh
	}

	entries, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	sats := c.Selection.Build(entries)
	if len(sats) == 0 {
		return nil, fmt.Errorf("no satellites selected from %d element sets", len(entries))
	}
	return sats, nil
}
