package options

import (
	"context"
	"time"

	"github.com/webitel/inspection-exporter/auth"
)

type CreateOptions struct {
	context.Context
	Time time.Time
	Auth auth.Auther
}

// NewCreateOptions sets Time to now and Auth from ctx.
func NewCreateOptions(ctx context.Context) (*CreateOptions, error) {
	opts := &CreateOptions{
		Context: ctx,
		Time:    time.Now().UTC(),
	}

	if err := setAuthFromContext(ctx, &opts.Auth); err != nil {
		return nil, err
	}

	return opts, nil
}
