package campaign

import (
	"campaignbot/types"
)

// Pending filters a fetched backlog down to what still needs work:
// completed campaigns are skipped, the checkpoint's current campaign
// (if any) is moved to the front so a restart resumes where it left
// off, and a non-empty singleID restricts the queue to that one
// campaign.
func Pending(backlog []types.Campaign, cp types.Checkpoint, singleID string) []types.Campaign {
	var resume *types.Campaign
	var rest []types.Campaign

	for _, c := range backlog {
		if singleID != "" && c.ID != singleID {
			continue
		}
		if cp.CampaignCompleted(c.ID) {
			continue
		}
		if c.ID == cp.CurrentCampaignID {
			copied := c
			resume = &copied
			continue
		}
		rest = append(rest, c)
	}

	if resume == nil {
		return rest
	}
	return append([]types.Campaign{*resume}, rest...)
}
