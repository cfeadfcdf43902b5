// Package catalog contains the upstream character catalog clients. Each
// client normalizes its catalog's records into the canonical domain shapes
// and stamps them with its provenance tag at ingestion.
package catalog

import (
	"context"
	"fmt"

	"cosplayradar/internal/domain"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

func doJSON[T any](ctx context.Context, client *fasthttp.Client, req *fasthttp.Request) (*T, error) {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = client.DoDeadline(req, resp, deadline)
	} else {
		err = client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusOK:
	case code == fasthttp.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case code == fasthttp.StatusNotFound:
		return nil, domain.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, code)
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrUpstreamUnavailable, err)
	}
	return &result, nil
}
