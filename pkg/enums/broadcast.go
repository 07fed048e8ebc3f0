package enums

// BroadcastTag labels a WebSocket envelope pushed to dashboards.
type BroadcastTag string

const (
	BroadcastNewAlert       BroadcastTag = "new_alert"
	BroadcastUpdateAlert    BroadcastTag = "update_alert"
	BroadcastDeleteAlert    BroadcastTag = "delete_alert"
	BroadcastClearAlerts    BroadcastTag = "clear_alerts"
	BroadcastAlertsSnapshot BroadcastTag = "alerts_snapshot"

	BroadcastSalesOverview  BroadcastTag = "salesOverviewUpdate"
	BroadcastMonthlySales   BroadcastTag = "monthlySalesUpdate"
	BroadcastYearlySales    BroadcastTag = "yearlySalesUpdate"
	BroadcastTopProducts    BroadcastTag = "topProductsUpdate"
	BroadcastLowProducts    BroadcastTag = "lowProductsUpdate"
	BroadcastOverallMetrics BroadcastTag = "overallMetricsUpdate"
)

// RollupTags lists the analytics rollup broadcasts in recompute order.
var RollupTags = []BroadcastTag{
	BroadcastSalesOverview,
	BroadcastMonthlySales,
	BroadcastYearlySales,
	BroadcastTopProducts,
	BroadcastLowProducts,
	BroadcastOverallMetrics,
}

// IsRollup reports whether the tag is an analytics rollup broadcast.
func (b BroadcastTag) IsRollup() bool {
	for _, candidate := range RollupTags {
		if candidate == b {
			return true
		}
	}
	return false
}
