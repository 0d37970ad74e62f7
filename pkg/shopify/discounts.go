package shopify

import (
	"context"
	"fmt"

	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

const discountFragment = `
  __typename
  ... on DiscountAutomaticBasic {
    title
    status
    summary
    startsAt
    endsAt
    customerGets {
      value {
        __typename
        ... on DiscountPercentage { percentage }
        ... on DiscountAmount { amount { amount currencyCode } }
      }
      items {
        __typename
        ... on AllDiscountItems { allItems }
        ... on DiscountProducts { products(first: 250) { nodes { id } } }
        ... on DiscountCollections { collections(first: 250) { nodes { id } } }
      }
    }
  }
  ... on DiscountCodeBasic {
    title
    status
    summary
    startsAt
    endsAt
    codes(first: 1) { nodes { code } }
    customerGets {
      value {
        __typename
        ... on DiscountPercentage { percentage }
        ... on DiscountAmount { amount { amount currencyCode } }
      }
      items {
        __typename
        ... on AllDiscountItems { allItems }
        ... on DiscountProducts { products(first: 250) { nodes { id } } }
        ... on DiscountCollections { collections(first: 250) { nodes { id } } }
      }
    }
  }
  ... on DiscountAutomaticBxgy {
    title
    status
    summary
    startsAt
    endsAt
    customerGets {
      items {
        __typename
        ... on AllDiscountItems { allItems }
        ... on DiscountProducts { products(first: 250) { nodes { id } } }
        ... on DiscountCollections { collections(first: 250) { nodes { id } } }
      }
    }
    customerBuys {
      items {
        __typename
        ... on AllDiscountItems { allItems }
        ... on DiscountProducts { products(first: 250) { nodes { id } } }
        ... on DiscountCollections { collections(first: 250) { nodes { id } } }
      }
    }
  }
  ... on DiscountCodeBxgy {
    title
    status
    summary
    startsAt
    endsAt
    codes(first: 1) { nodes { code } }
    customerGets {
      items {
        __typename
        ... on AllDiscountItems { allItems }
        ... on DiscountProducts { products(first: 250) { nodes { id } } }
        ... on DiscountCollections { collections(first: 250) { nodes { id } } }
      }
    }
    customerBuys {
      items {
        __typename
        ... on AllDiscountItems { allItems }
        ... on DiscountProducts { products(first: 250) { nodes { id } } }
        ... on DiscountCollections { collections(first: 250) { nodes { id } } }
      }
    }
  }
`

var getDiscountNodeQuery = fmt.Sprintf(`
query discountNode($id: ID!) {
  discountNode(id: $id) {
    id
    discount {%s}
  }
}`, discountFragment)

var listDiscountNodesQuery = fmt.Sprintf(`
query discountNodes($first: Int!, $after: String) {
  discountNodes(first: $first, after: $after) {
    nodes {
      id
      discount {%s}
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`, discountFragment)

// GetDiscountNode fetches one discount by canonical GID. A missing node is
// not an error: the result is (nil, nil).
func (c *Client) GetDiscountNode(ctx context.Context, discountGID string) (*DiscountNode, error) {
	var data struct {
		DiscountNode *gqlDiscountNode `json:"discountNode"`
	}
	err := c.doGraphQL(ctx, "get_discount_node", getDiscountNodeQuery, map[string]any{"id": discountGID}, &data)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if data.DiscountNode == nil {
		return nil, nil
	}
	return data.DiscountNode.toDomain()
}

// ListDiscountNodes returns one page of the shop's discounts. Pass the
// previous page's EndCursor to continue; an empty cursor starts from the top.
func (c *Client) ListDiscountNodes(ctx context.Context, cursor string, pageSize int) (*DiscountNodePage, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	variables := map[string]any{"first": pageSize}
	if cursor != "" {
		variables["after"] = cursor
	}

	var data struct {
		DiscountNodes struct {
			Nodes    []gqlDiscountNode `json:"nodes"`
			PageInfo gqlPageInfo       `json:"pageInfo"`
		} `json:"discountNodes"`
	}
	if err := c.doGraphQL(ctx, "list_discount_nodes", listDiscountNodesQuery, variables, &data); err != nil {
		return nil, err
	}

	page := &DiscountNodePage{
		EndCursor:   data.DiscountNodes.PageInfo.EndCursor,
		HasNextPage: data.DiscountNodes.PageInfo.HasNextPage,
	}
	for _, raw := range data.DiscountNodes.Nodes {
		node, err := raw.toDomain()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode discount node")
		}
		if node != nil {
			page.Nodes = append(page.Nodes, *node)
		}
	}
	return page, nil
}
