package discounts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
)

// Fixed annotation location on product records. Changing either invalidates
// every annotation already written.
const (
	MetafieldNamespace = "promosync"
	MetafieldKey       = "active_discounts"
)

// MetafieldDiscountEntry is one record of the annotation wire schema: a
// JSON array of these, stored as a string-typed metafield value.
type MetafieldDiscountEntry struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Code      string     `json:"code,omitempty"`
	ValueKind string     `json:"value_kind"`
	Value     string     `json:"value"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
}

// AnnotationMerger reads, edits, and rewrites per-product discount
// annotations without touching entries for other discounts.
type AnnotationMerger struct {
	factory ClientFactory
	logger  *logger.Logger
}

// AnnotationMergerParams carries the merger's dependencies.
type AnnotationMergerParams struct {
	Factory ClientFactory
	Logger  *logger.Logger
}

// NewAnnotationMerger validates params and builds a merger.
func NewAnnotationMerger(params AnnotationMergerParams) (*AnnotationMerger, error) {
	if params.Factory == nil {
		return nil, errors.New("annotation merger requires a client factory")
	}
	if params.Logger == nil {
		return nil, errors.New("annotation merger requires a logger")
	}
	return &AnnotationMerger{factory: params.Factory, logger: params.Logger}, nil
}

func entryFromData(data ExtractedDiscountData) MetafieldDiscountEntry {
	return MetafieldDiscountEntry{
		ID:        data.ID,
		Title:     data.Title,
		Code:      data.Code,
		ValueKind: data.Value.Kind.String(),
		Value:     data.Value.Display,
		EndsAt:    data.EndsAt,
	}
}

// decodeEntries is the single decode boundary for the annotation schema.
// A malformed stored value is treated as empty so one bad write can never
// wedge a product; the annotation is regenerated from authoritative data
// on every pass anyway.
func (m *AnnotationMerger) decodeEntries(ctx context.Context, productGID, raw string) []MetafieldDiscountEntry {
	if raw == "" {
		return nil
	}
	var entries []MetafieldDiscountEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		lctx := m.logger.WithProductID(ctx, productGID)
		m.logger.Warn(lctx, "malformed discount annotation, treating as empty")
		return nil
	}
	return entries
}

func encodeEntries(entries []MetafieldDiscountEntry) (string, error) {
	if entries == nil {
		entries = []MetafieldDiscountEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode discount annotation")
	}
	return string(raw), nil
}

// UpdateProductMetafield merges one discount entry into the product's
// annotation list, replacing any previous entry with the same discount id.
func (m *AnnotationMerger) UpdateProductMetafield(ctx context.Context, shop *models.Shop, productGID string, data ExtractedDiscountData) error {
	client, err := m.factory.ClientFor(shop)
	if err != nil {
		return err
	}

	raw, err := client.GetProductMetafield(ctx, productGID, MetafieldNamespace, MetafieldKey)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read discount annotation")
	}

	entries := m.decodeEntries(ctx, productGID, raw)
	merged := make([]MetafieldDiscountEntry, 0, len(entries)+1)
	for _, entry := range entries {
		if entry.ID == data.ID {
			continue
		}
		merged = append(merged, entry)
	}
	merged = append(merged, entryFromData(data))

	value, err := encodeEntries(merged)
	if err != nil {
		return err
	}
	if err := client.SetProductMetafield(ctx, productGID, MetafieldNamespace, MetafieldKey, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write discount annotation")
	}
	return nil
}

// RemoveDiscountFromProduct filters one discount entry out of the product's
// annotation list. When the entry is already absent the upstream write is
// skipped entirely.
func (m *AnnotationMerger) RemoveDiscountFromProduct(ctx context.Context, shop *models.Shop, productGID, discountID string) error {
	client, err := m.factory.ClientFor(shop)
	if err != nil {
		return err
	}

	raw, err := client.GetProductMetafield(ctx, productGID, MetafieldNamespace, MetafieldKey)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read discount annotation")
	}

	bare := NormalizeDiscountID(discountID)
	entries := m.decodeEntries(ctx, productGID, raw)
	filtered := make([]MetafieldDiscountEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == bare {
			continue
		}
		filtered = append(filtered, entry)
	}
	if len(filtered) == len(entries) {
		return nil
	}

	value, err := encodeEntries(filtered)
	if err != nil {
		return err
	}
	if err := client.SetProductMetafield(ctx, productGID, MetafieldNamespace, MetafieldKey, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write discount annotation")
	}
	return nil
}
