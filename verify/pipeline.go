package verify

import (
	"context"
	"log"
	"time"

	"campaignbot/content"
	"campaignbot/types"
)

// MediaChecker resolves and checks media refs against authenticated
// storage. common.S3 satisfies it.
type MediaChecker interface {
	KeyFromRef(ref string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Pipeline runs the post-generation checks for one unit. Every check
// is independent, logged and non-fatal: the first failure
// short-circuits the remainder and the unit keeps the highest
// classification it reached. Nothing here can abort a batch; the
// generation boundary is at-least-once, so verification exists to
// grade outcomes, not to gate liveness.
type Pipeline struct {
	Store    content.Store
	Media    MediaChecker
	Approval ApprovalClient
	// Window is how recent a content record must be for the persisted
	// check to accept it.
	Window time.Duration
	// now is injectable for tests.
	now func() time.Time
}

// Verify grades a generated unit. It never returns an error.
func (p *Pipeline) Verify(ctx context.Context, unit types.GenerationUnit, result *types.GenerationResult) types.ContentClass {
	class := types.ClassGenerated
	label := func() string {
		return unit.Campaign.ID + "/" + unit.ContentType
	}

	// 1. persisted: a matching record appeared in the store recently.
	record, err := p.persisted(ctx, unit)
	if err != nil || record == nil {
		if err != nil {
			log.Printf("  🔍 %s: persistence check failed: %v", label(), err)
		} else {
			log.Printf("  🔍 %s: no recent content record found", label())
		}
		return class
	}
	class = types.ClassPersisted

	contentID := record.ContentID
	if result != nil && result.ContentID != "" {
		contentID = result.ContentID
	}

	// 2. media_valid: every ref resolves to authenticated storage.
	if ok := p.mediaValid(ctx, label(), result); !ok {
		return class
	}
	class = types.ClassMediaVerified

	// 3. approval_triggered: downstream approval request accepted.
	if p.Approval == nil {
		log.Printf("  🔍 %s: approval service not configured", label())
		return class
	}
	accepted, err := p.Approval.RequestApproval(ctx, contentID, unit.Identity)
	if err != nil {
		log.Printf("  🔍 %s: approval request failed: %v", label(), err)
		return class
	}
	if !accepted {
		log.Printf("  🔍 %s: approval request rejected", label())
		return class
	}
	class = types.ClassApprovalRequested

	// 4. approval_confirmed: the status change landed durably.
	status, err := p.Store.Approval(ctx, unit.Campaign.ID, unit.ContentType)
	if err != nil {
		log.Printf("  🔍 %s: approval status lookup failed: %v", label(), err)
		return class
	}
	if status != content.ApprovalAccepted {
		log.Printf("  🔍 %s: approval status is %q, not confirmed", label(), status)
		return class
	}
	class = types.ClassApproved

	// 5. finalization_confirmed: the post-approval artifact exists.
	if p.Media == nil {
		log.Printf("  🔍 %s: media storage not configured, skipping finalization check", label())
		return class
	}
	exists, err := p.Media.Exists(ctx, FinalizedKey(contentID))
	if err != nil {
		log.Printf("  🔍 %s: finalization check failed: %v", label(), err)
		return class
	}
	if !exists {
		log.Printf("  🔍 %s: finalized artifact not found", label())
		return class
	}
	return types.ClassFinalized
}

// FinalizedKey is the storage key convention for the post-approval
// artifact of a piece of content.
func FinalizedKey(contentID string) string {
	return "finalized/" + contentID + ".json"
}

func (p *Pipeline) persisted(ctx context.Context, unit types.GenerationUnit) (*content.Record, error) {
	record, err := p.Store.Latest(ctx, unit.Campaign.ID, unit.ContentType)
	if err != nil || record == nil {
		return nil, err
	}
	now := time.Now()
	if p.now != nil {
		now = p.now()
	}
	if p.Window > 0 && now.Sub(record.CreatedAt) > p.Window {
		return nil, nil
	}
	return record, nil
}

func (p *Pipeline) mediaValid(ctx context.Context, label string, result *types.GenerationResult) bool {
	if result == nil || len(result.MediaRefs) == 0 {
		// Text-only content has no media to validate.
		return true
	}
	if p.Media == nil {
		log.Printf("  🔍 %s: media refs present but storage not configured", label)
		return false
	}
	for _, ref := range result.MediaRefs {
		key, err := p.Media.KeyFromRef(ref)
		if err != nil {
			log.Printf("  🔍 %s: %v", label, err)
			return false
		}
		exists, err := p.Media.Exists(ctx, key)
		if err != nil {
			log.Printf("  🔍 %s: media check failed for %s: %v", label, ref, err)
			return false
		}
		if !exists {
			log.Printf("  🔍 %s: media ref %s does not resolve", label, ref)
			return false
		}
	}
	return true
}
