package github

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	perr "ghcollector/internal/platform/errors"
)

// SearchPerPage is the fixed page size for repository discovery
const SearchPerPage = 100

// SearchRepositories runs one page of /search/repositories sorted by stars
// descending. Responses are cached; the caller builds the qualifier string
func (c *Client) SearchRepositories(ctx context.Context, query string, page int) (*SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "stars")
	q.Set("order", "desc")
	q.Set("per_page", strconv.Itoa(SearchPerPage))
	q.Set("page", strconv.Itoa(page))

	var out SearchResult
	if err := c.getJSON(ctx, "/search/repositories", q, true, &out); err != nil {
		return nil, perr.WithOp(err, "github.search")
	}
	return &out, nil
}

// UserByLogin fetches a full user profile. A 404 yields (nil, nil): deleted
// accounts are routine and the caller decides what an absent owner means
func (c *Client) UserByLogin(ctx context.Context, login string) (*OwnerProfile, error) {
	var out OwnerProfile
	err := c.getJSON(ctx, "/users/"+url.PathEscape(login), nil, true, &out)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.WithOp(err, "github.user")
	}
	return &out, nil
}

// OrgByLogin fetches a full organization profile; 404 yields (nil, nil)
func (c *Client) OrgByLogin(ctx context.Context, login string) (*OwnerProfile, error) {
	var out OwnerProfile
	err := c.getJSON(ctx, "/orgs/"+url.PathEscape(login), nil, true, &out)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.WithOp(err, "github.org")
	}
	out.Type = "Organization"
	return &out, nil
}

// ContributorsCount derives the contributor count from pagination metadata:
// HEAD with per_page=1 makes the rel="last" page number equal the count.
// 204 means an empty repository; a missing Link header means a single page
func (c *Client) ContributorsCount(ctx context.Context, owner, name string) (int, error) {
	q := url.Values{}
	q.Set("per_page", "1")
	q.Set("anon", "true")
	path := "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name) + "/contributors"

	_, hdr, status, err := c.do(ctx, http.MethodHead, path, q, false)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, perr.WithOp(err, "github.contributors")
	}
	if status == http.StatusNoContent || hdr == nil {
		return 0, nil
	}
	if n, ok := parseLastPage(hdr.Get("Link")); ok {
		return n, nil
	}
	return 1, nil
}

// RateLimit reads /rate_limit for active monitoring; never cached and the
// endpoint itself does not consume quota
func (c *Client) RateLimit(ctx context.Context) (*RateLimit, error) {
	var out RateLimit
	if err := c.getJSON(ctx, "/rate_limit", nil, false, &out); err != nil {
		return nil, perr.WithOp(err, "github.rate_limit")
	}
	return &out, nil
}
