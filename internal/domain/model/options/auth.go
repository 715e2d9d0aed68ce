package options

import (
	"context"
	"net/http"
	"time"

	"github.com/webitel/inspection-exporter/auth"
	"github.com/webitel/inspection-exporter/internal/domain/model/options/util"
	"github.com/webitel/inspection-exporter/internal/errors"
)

func setAuthFromContext(ctx context.Context, target *auth.Auther) error {
	if sess := util.GetAutherOutOfContext(ctx); sess != nil {
		*target = sess
		return nil
	}
	return errors.New("can't authorize user", errors.WithCode(http.StatusUnauthorized))
}

// Getters
func (o *CreateOptions) RequestTime() time.Time { return o.Time }
func (o *CreateOptions) GetAuth() auth.Auther   { return o.Auth }

func (o *SearchOptions) RequestTime() time.Time { return o.Time }
func (o *SearchOptions) GetAuth() auth.Auther   { return o.Auth }

func (o *DeleteOptions) RequestTime() time.Time { return o.Time }
func (o *DeleteOptions) GetAuth() auth.Auther   { return o.Auth }
