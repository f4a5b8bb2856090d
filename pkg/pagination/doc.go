// Package pagination follows server-driven paging on appliance collection endpoints.
//
// The first request carries a page-size parameter ($top). Every page may name the
// URI of the following page in its nextLink field; the follower keeps fetching
// until a page carries no nextLink and concatenates the items arrays.
//
// Example usage:
//
//	follower := pagination.NewFollower(fetcher, pagination.DefaultConfig())
//	merged, err := follower.FetchAll(ctx, "/mgmt/tm/ltm/pool?%24top=30")
//
// The merged object keeps the first page's top-level fields (kind, selfLink, ...),
// holds every page's items and has no nextLink.
//
// A nextLink that is not a string, cannot be parsed, or points back to a page
// already fetched is reported as ErrProtocol, as is a non-array items field.
package pagination
