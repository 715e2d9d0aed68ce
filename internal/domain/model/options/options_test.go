package options

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/inspection-exporter/auth/permission"
	"github.com/webitel/inspection-exporter/internal/domain/model"
	"github.com/webitel/inspection-exporter/internal/domain/model/options/util"
	"github.com/webitel/inspection-exporter/internal/errors"
)

func TestNewSearchOptions(t *testing.T) {
	session, err := model.NewSession(5, "Lee", permission.RoleInspector)
	require.NoError(t, err)
	ctx := util.ContextWithAuther(context.Background(), session)

	opts, err := NewSearchOptions(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Page)
	assert.Equal(t, MaxPageSize, opts.Size)
	assert.Equal(t, 0, opts.Offset())
	assert.Equal(t, int64(5), opts.GetAuth().GetUserId())

	opts, err = NewSearchOptions(ctx, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 2*DefaultPageSize, opts.Offset())
}

func TestNewCreateOptionsRequiresSession(t *testing.T) {
	_, err := NewCreateOptions(context.Background())
	assert.Equal(t, http.StatusUnauthorized, errors.Code(err))
}
