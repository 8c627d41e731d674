package proofservice

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/types"
)

// caching implements a caching layer on top of its Client.
// Only completed statuses are cached: they never change once produced,
// so repeated reads of a completed job return identical proof material.
type caching struct {
	cache  *lru.Cache
	client Client
}

func NewCaching(size int, client Client) (Client, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &caching{
		cache:  cache,
		client: client,
	}, nil
}

func (c *caching) Submit(ctx context.Context, addresses types.AddressSet) (types.ProofJob, error) {
	return c.client.Submit(ctx, addresses)
}

func (c *caching) FetchStatus(ctx context.Context, job types.ProofJob) (*types.ProofStatus, error) {
	if status, ok := c.cache.Get(job); ok {
		logging.FromContext(ctx).Debug("retrieved completed status from the cache", zap.String("job", string(job)))
		// SAFETY: type assertion will never panic as we insert only `types.ProofStatus` values.
		cached := status.(types.ProofStatus)
		return &cached, nil
	}

	status, err := c.client.FetchStatus(ctx, job)
	if err == nil && status.Completed() {
		c.cache.Add(job, *status)
	}
	return status, err
}
