package models

import "fmt"

// EntityKind distinguishes the two targeting levels the engine recommends on.
// Keywords carry an absolute bid; placements carry a bid adjustment percentage.
const (
	// EntityKeyword is a keyword target inside an ad group. Its value is an
	// absolute bid in the campaign's currency.
	EntityKeyword = "keyword"
	// EntityPlacement is a placement slot of a campaign (e.g. "top-of-search").
	// Its value is a bid adjustment in percentage points, 0-900.
	EntityPlacement = "placement"
)

// TargetingEntity identifies one bid-carrying target. The identity fields
// (CampaignID, AdGroupID, Targeting, Kind) are immutable; the display names
// are denormalized from the ad platform and may be refreshed opportunistically.
type TargetingEntity struct {
	CampaignID int `json:"campaign_id"`
	// AdGroupID is zero for placement entities, which live at campaign level.
	AdGroupID int    `json:"ad_group_id,omitempty"`
	Targeting string `json:"targeting"`
	Kind      string `json:"kind"`

	// MatchType applies to keywords (broad, phrase, exact).
	MatchType string `json:"match_type,omitempty"`
	// PlacementLabel applies to placements (e.g. "Top of Search").
	PlacementLabel string `json:"placement_label,omitempty"`

	CampaignName string `json:"campaign_name,omitempty"`
	AdGroupName  string `json:"ad_group_name,omitempty"`

	// CurrentValue is the live bid (keyword) or adjustment percentage
	// (placement) at evaluation time. Zero means unknown for keywords.
	CurrentValue float64 `json:"current_value"`
}

// Key returns a stable identifier usable as a map key or log field.
func (e TargetingEntity) Key() string {
	return fmt.Sprintf("%s:%d:%d:%s", e.Kind, e.CampaignID, e.AdGroupID, e.Targeting)
}
