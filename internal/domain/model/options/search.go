package options

import (
	"context"
	"time"

	"github.com/webitel/inspection-exporter/auth"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

type SearchOptions struct {
	context.Context
	Time time.Time
	Auth auth.Auther
	Page int
	Size int
}

func NewSearchOptions(ctx context.Context, page, size int) (*SearchOptions, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	opts := &SearchOptions{
		Context: ctx,
		Time:    time.Now().UTC(),
		Page:    page,
		Size:    size,
	}

	if err := setAuthFromContext(ctx, &opts.Auth); err != nil {
		return nil, err
	}

	return opts, nil
}

func (o *SearchOptions) Offset() int { return (o.Page - 1) * o.Size }
