// Package closeplan derives and maintains a deal's remediation plan. A plan
// is regenerated as a full replace: the previous item set is discarded in
// its entirety inside one per-deal transaction, so readers never observe a
// half-replaced plan. Callers who want to preserve manually completed items
// pass them back as explicit items; regeneration never merges.
package closeplan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dealforge/governor/pkg/contracts"
)

// PlanStore is the persistence surface the generator needs.
type PlanStore interface {
	GetDeal(ctx context.Context, dealID string) (*contracts.Deal, error)
	ListStakeholders(ctx context.Context, dealID string) ([]contracts.Stakeholder, error)
	GetPlan(ctx context.Context, dealID string) (*contracts.ClosePlan, error)
	ReplacePlan(ctx context.Context, p *contracts.ClosePlan) error
	GetItem(ctx context.Context, itemID string) (*contracts.ClosePlanItem, string, error)
	UpdateItem(ctx context.Context, it *contracts.ClosePlanItem) error
}

// EvidenceReader supplies the logically complete ledger read.
type EvidenceReader interface {
	Read(ctx context.Context, dealID string) ([]contracts.EvidenceRecord, error)
}

// DealLock serializes regeneration for one deal across replicas. The store's
// immediate transaction already serializes within a process; a lock is only
// needed when several replicas share the datastore.
type DealLock interface {
	Acquire(ctx context.Context, dealID string) (release func(), err error)
}

// ExplicitItem is a caller-supplied plan item used verbatim instead of the
// derived list.
type ExplicitItem struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Status      string     `json:"status,omitempty"`
	TaskRefs    []string   `json:"task_refs,omitempty"`
}

// ItemPatch carries the mutable fields of updateClosePlanItem. Nil pointers
// leave the field untouched.
type ItemPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	OwnerID     *string    `json:"owner_id,omitempty"`
	Status      *string    `json:"status,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TaskRefs    []string   `json:"task_refs,omitempty"`
}

// Generator derives and replaces close plans.
type Generator struct {
	store  PlanStore
	ledger EvidenceReader
	lock   DealLock
	logger *slog.Logger
	clock  func() time.Time
}

// NewGenerator creates a generator. lock may be nil for single-replica use.
func NewGenerator(store PlanStore, ledger EvidenceReader, lock DealLock, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, ledger: ledger, lock: lock, logger: logger, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (g *Generator) WithClock(clock func() time.Time) *Generator {
	g.clock = clock
	return g
}

// Generate builds the deal's plan and writes it as a full replace. When
// explicitItems is non-empty it is used verbatim (manual override);
// otherwise the plan is derived from the current ledger, stage and roster.
func (g *Generator) Generate(ctx context.Context, dealID string, explicitItems []ExplicitItem, actorID string) (*contracts.ClosePlan, error) {
	if g.lock != nil {
		release, err := g.lock.Acquire(ctx, dealID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	deal, err := g.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	var items []contracts.ClosePlanItem
	if len(explicitItems) > 0 {
		items, err = g.materializeExplicit(explicitItems)
		if err != nil {
			return nil, err
		}
	} else {
		records, err := g.ledger.Read(ctx, dealID)
		if err != nil {
			return nil, err
		}
		roster, err := g.store.ListStakeholders(ctx, dealID)
		if err != nil {
			return nil, err
		}
		for i, d := range Derive(*deal, records, roster) {
			items = append(items, contracts.ClosePlanItem{
				ItemID:      uuid.New().String(),
				Title:       d.Title,
				Description: d.Description,
				Category:    d.Category,
				SortOrder:   i,
				Status:      contracts.ItemPending,
			})
		}
	}

	plan := &contracts.ClosePlan{
		PlanID:          uuid.New().String(),
		DealID:          dealID,
		TargetCloseDate: deal.CloseDate,
		Items:           items,
		GeneratedAt:     g.clock(),
		GeneratedBy:     actorID,
	}
	if err := g.store.ReplacePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("replace close plan: %w", err)
	}

	g.logger.Info("close plan generated",
		"deal_id", dealID,
		"items", len(items),
		"explicit", len(explicitItems) > 0,
		"actor_id", actorID)
	return plan, nil
}

func (g *Generator) materializeExplicit(specs []ExplicitItem) ([]contracts.ClosePlanItem, error) {
	items := make([]contracts.ClosePlanItem, 0, len(specs))
	for i, spec := range specs {
		if spec.Title == "" {
			return nil, contracts.NewValidation(fmt.Sprintf("explicit item %d is missing a title", i))
		}
		status := contracts.ItemPending
		if spec.Status != "" {
			parsed, err := contracts.ParsePlanItemStatus(spec.Status)
			if err != nil {
				return nil, err
			}
			status = parsed
		}
		var category contracts.EvidenceCategory
		if spec.Category != "" {
			parsed, err := contracts.ParseEvidenceCategory(spec.Category)
			if err != nil {
				return nil, err
			}
			category = parsed
		}
		item := contracts.ClosePlanItem{
			ItemID:      uuid.New().String(),
			Title:       spec.Title,
			Description: spec.Description,
			Category:    category,
			SortOrder:   i,
			DueDate:     spec.DueDate,
			OwnerID:     spec.OwnerID,
			Status:      status,
			TaskRefs:    spec.TaskRefs,
		}
		if status == contracts.ItemComplete {
			now := g.clock()
			item.CompletedAt = &now
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateItem applies a patch to one plan item. A transition to COMPLETE
// stamps the completion time unless the caller supplied one explicitly.
func (g *Generator) UpdateItem(ctx context.Context, itemID string, patch ItemPatch) (*contracts.ClosePlanItem, error) {
	item, dealID, err := g.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, contracts.NewValidation("item title cannot be empty")
		}
		item.Title = *patch.Title
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.DueDate != nil {
		item.DueDate = patch.DueDate
	}
	if patch.OwnerID != nil {
		item.OwnerID = *patch.OwnerID
	}
	if patch.TaskRefs != nil {
		item.TaskRefs = patch.TaskRefs
	}
	if patch.Status != nil {
		status, err := contracts.ParsePlanItemStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		if status == contracts.ItemComplete && item.Status != contracts.ItemComplete {
			if patch.CompletedAt != nil {
				item.CompletedAt = patch.CompletedAt
			} else {
				now := g.clock()
				item.CompletedAt = &now
			}
		}
		item.Status = status
	} else if patch.CompletedAt != nil {
		item.CompletedAt = patch.CompletedAt
	}

	if err := g.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	g.logger.Info("close plan item updated", "deal_id", dealID, "item_id", itemID, "status", string(item.Status))
	return item, nil
}

// Get returns the deal's current plan.
func (g *Generator) Get(ctx context.Context, dealID string) (*contracts.ClosePlan, error) {
	return g.store.GetPlan(ctx, dealID)
}
