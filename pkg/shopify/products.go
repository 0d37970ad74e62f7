package shopify

import "context"

const listProductIDsQuery = `
query products($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    nodes { id }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

const listCollectionProductIDsQuery = `
query collectionProducts($id: ID!, $first: Int!, $after: String) {
  collection(id: $id) {
    products(first: $first, after: $after) {
      nodes { id }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

type gqlIDConnection struct {
	Nodes []struct {
		ID string `json:"id"`
	} `json:"nodes"`
	PageInfo gqlPageInfo `json:"pageInfo"`
}

func (conn gqlIDConnection) toPage() *IDPage {
	page := &IDPage{
		EndCursor:   conn.PageInfo.EndCursor,
		HasNextPage: conn.PageInfo.HasNextPage,
	}
	for _, node := range conn.Nodes {
		page.IDs = append(page.IDs, node.ID)
	}
	return page
}

// ListProductIDs returns one page of the shop's product GIDs.
func (c *Client) ListProductIDs(ctx context.Context, cursor string, pageSize int) (*IDPage, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	variables := map[string]any{"first": pageSize}
	if cursor != "" {
		variables["after"] = cursor
	}

	var data struct {
		Products gqlIDConnection `json:"products"`
	}
	if err := c.doGraphQL(ctx, "list_product_ids", listProductIDsQuery, variables, &data); err != nil {
		return nil, err
	}
	return data.Products.toPage(), nil
}

// ListCollectionProductIDs returns one page of product GIDs belonging to a
// collection. A missing collection yields an empty final page.
func (c *Client) ListCollectionProductIDs(ctx context.Context, collectionGID, cursor string, pageSize int) (*IDPage, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	variables := map[string]any{"id": collectionGID, "first": pageSize}
	if cursor != "" {
		variables["after"] = cursor
	}

	var data struct {
		Collection *struct {
			Products gqlIDConnection `json:"products"`
		} `json:"collection"`
	}
	if err := c.doGraphQL(ctx, "list_collection_product_ids", listCollectionProductIDsQuery, variables, &data); err != nil {
		return nil, err
	}
	if data.Collection == nil {
		return &IDPage{}, nil
	}
	return data.Collection.Products.toPage(), nil
}
