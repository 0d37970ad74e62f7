package shopify

import (
	"context"
	"fmt"

	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

const getProductMetafieldQuery = `
query productMetafield($id: ID!, $namespace: String!, $key: String!) {
  product(id: $id) {
    metafield(namespace: $namespace, key: $key) {
      value
    }
  }
}`

const setMetafieldMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id }
    userErrors {
      field
      message
    }
  }
}`

// GetProductMetafield reads one metafield value off a product. A missing
// product or metafield yields an empty string, not an error.
func (c *Client) GetProductMetafield(ctx context.Context, productGID, namespace, key string) (string, error) {
	var data struct {
		Product *struct {
			Metafield *struct {
				Value string `json:"value"`
			} `json:"metafield"`
		} `json:"product"`
	}
	variables := map[string]any{"id": productGID, "namespace": namespace, "key": key}
	if err := c.doGraphQL(ctx, "get_product_metafield", getProductMetafieldQuery, variables, &data); err != nil {
		return "", err
	}
	if data.Product == nil || data.Product.Metafield == nil {
		return "", nil
	}
	return data.Product.Metafield.Value, nil
}

// SetProductMetafield writes one JSON metafield value onto a product.
func (c *Client) SetProductMetafield(ctx context.Context, productGID, namespace, key, value string) error {
	variables := map[string]any{
		"metafields": []map[string]any{
			{
				"ownerId":   productGID,
				"namespace": namespace,
				"key":       key,
				"type":      "json",
				"value":     value,
			},
		},
	}

	var data struct {
		MetafieldsSet struct {
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	if err := c.doGraphQL(ctx, "set_product_metafield", setMetafieldMutation, variables, &data); err != nil {
		return err
	}
	if len(data.MetafieldsSet.UserErrors) > 0 {
		first := data.MetafieldsSet.UserErrors[0]
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("metafield write rejected: %s", first.Message))
	}
	return nil
}
