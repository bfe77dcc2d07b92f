package storegateway

import (
	"context"

	"github.com/sentineldb/siemcore/pkg/intel"
)

var _ intel.Loader = (*Gateway)(nil)

func (g *Gateway) LoadIndicators(ctx context.Context) ([]intel.Indicator, error) {
	rows, err := g.client.ExecuteQuery(ctx, "SELECT * FROM ioc_indicators", nil)
	if err != nil {
		return nil, err
	}
	out := make([]intel.Indicator, 0, len(rows))
	for _, row := range rows {
		out = append(out, intel.Indicator{
			Value:        asString(row["indicator"]),
			Type:         intel.IndicatorType(asString(row["indicator_type"])),
			SourceFeed:   asString(row["source_feed"]),
			SeverityHint: asString(row["severity_hint"]),
		})
	}
	return out, nil
}
