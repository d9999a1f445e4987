package crawl

import (
	"context"

	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/source"
)

// MinimumEventID is the cursor used when nothing has been persisted for a
// source. It is the id of an event created on 2015-08-31T16:38:39Z.
const MinimumEventID int64 = 18397574641

// CursorReader reports the highest persisted source event id.
type CursorReader interface {
	LatestSourceEventID(ctx context.Context, system source.SystemID) (int64, bool, error)
}

// LatestCursor returns the numeric maximum source event id persisted for
// system, or MinimumEventID when there is none.
func LatestCursor(ctx context.Context, st CursorReader, system source.SystemID) (int64, error) {
	latest, ok, err := st.LatestSourceEventID(ctx, system)
	if err != nil {
		return 0, errmodel.Persistence("cursor_unavailable", "cannot read latest source event id", map[string]any{
			"source": system.String(),
		}, err)
	}
	if !ok {
		return MinimumEventID, nil
	}
	return latest, nil
}
