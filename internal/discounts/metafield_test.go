package discounts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/promosynchq/promosync/pkg/enums"
)

func newTestMerger(t *testing.T, upstream *stubUpstream) *AnnotationMerger {
	t.Helper()
	merger, err := NewAnnotationMerger(AnnotationMergerParams{
		Factory: &stubFactory{client: upstream},
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("NewAnnotationMerger: %v", err)
	}
	return merger
}

func decodeStored(t *testing.T, upstream *stubUpstream, productGID string) []MetafieldDiscountEntry {
	t.Helper()
	raw := upstream.metafields[productGID]
	var entries []MetafieldDiscountEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatalf("stored annotation does not decode: %v (%s)", err, raw)
	}
	return entries
}

func percentageData(id, title string) ExtractedDiscountData {
	return ExtractedDiscountData{
		ID:    id,
		Title: title,
		Value: DiscountValue{
			Kind:       enums.DiscountValuePercentage,
			Percentage: 0.2,
			Display:    "20% off",
		},
	}
}

const productGID = "gid://shopify/Product/1"

func TestUpdateProductMetafieldMergeIsIdempotent(t *testing.T) {
	upstream := &stubUpstream{}
	merger := newTestMerger(t, upstream)
	ctx := context.Background()
	shop := testShop()

	data := percentageData("42", "Summer Sale")
	if err := merger.UpdateProductMetafield(ctx, shop, productGID, data); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if err := merger.UpdateProductMetafield(ctx, shop, productGID, data); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	entries := decodeStored(t, upstream, productGID)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ID != "42" || entries[0].Value != "20% off" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestUpdateProductMetafieldPreservesOtherEntries(t *testing.T) {
	upstream := &stubUpstream{
		metafields: map[string]string{
			productGID: `[{"id":"7","title":"Old Deal","value_kind":"percentage","value":"10% off"}]`,
		},
	}
	merger := newTestMerger(t, upstream)

	if err := merger.UpdateProductMetafield(context.Background(), testShop(), productGID, percentageData("42", "Summer Sale")); err != nil {
		t.Fatalf("merge: %v", err)
	}

	entries := decodeStored(t, upstream, productGID)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != "7" {
		t.Errorf("unrelated entry displaced: %+v", entries)
	}
}

func TestUpdateProductMetafieldReplacesStaleEntry(t *testing.T) {
	upstream := &stubUpstream{
		metafields: map[string]string{
			productGID: `[{"id":"42","title":"Old Title","value_kind":"percentage","value":"10% off"}]`,
		},
	}
	merger := newTestMerger(t, upstream)

	if err := merger.UpdateProductMetafield(context.Background(), testShop(), productGID, percentageData("42", "New Title")); err != nil {
		t.Fatalf("merge: %v", err)
	}

	entries := decodeStored(t, upstream, productGID)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Title != "New Title" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestUpdateProductMetafieldMalformedValueTreatedAsEmpty(t *testing.T) {
	upstream := &stubUpstream{
		metafields: map[string]string{productGID: `{"not":"a list"`},
	}
	merger := newTestMerger(t, upstream)

	if err := merger.UpdateProductMetafield(context.Background(), testShop(), productGID, percentageData("42", "Summer Sale")); err != nil {
		t.Fatalf("merge over malformed value: %v", err)
	}

	entries := decodeStored(t, upstream, productGID)
	if len(entries) != 1 || entries[0].ID != "42" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRemoveDiscountFromProduct(t *testing.T) {
	upstream := &stubUpstream{
		metafields: map[string]string{
			productGID: `[{"id":"42","title":"A","value_kind":"percentage","value":"20% off"},{"id":"7","title":"B","value_kind":"fixed_amount","value":"5.00 USD off"}]`,
		},
	}
	merger := newTestMerger(t, upstream)

	if err := merger.RemoveDiscountFromProduct(context.Background(), testShop(), productGID, "gid://shopify/DiscountCodeNode/42"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	entries := decodeStored(t, upstream, productGID)
	if len(entries) != 1 || entries[0].ID != "7" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRemoveDiscountFromProductSkipsNoOpWrite(t *testing.T) {
	upstream := &stubUpstream{
		metafields: map[string]string{
			productGID: `[{"id":"7","title":"B","value_kind":"percentage","value":"10% off"}]`,
		},
	}
	merger := newTestMerger(t, upstream)

	if err := merger.RemoveDiscountFromProduct(context.Background(), testShop(), productGID, "42"); err != nil {
		t.Fatalf("remove absent entry: %v", err)
	}
	if len(upstream.setCalls) != 0 {
		t.Errorf("expected no write for absent entry, got %d", len(upstream.setCalls))
	}
}
