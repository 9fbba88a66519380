package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/devrev/viewcounter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBumpViews(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Store: config.StoreConfig{Backend: config.BackendRedis},
		Redis: config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"},
		Views: config.ViewsConfig{
			ReadCollection:      "blogs",
			RecordCollection:    "projects",
			DedupWindow:         24 * time.Hour,
			MaxSlugLength:       100,
			ClientAddressHeader: "X-Forwarded-For",
		},
	}
	ctx := context.Background()

	require.NoError(t, bumpViews(ctx, cfg, "", []string{"tool", "tool"}, zap.NewNop()))
	require.NoError(t, bumpViews(ctx, cfg, "blogs", []string{"post"}, zap.NewNop()))

	v, err := mr.Get("pageviews:projects:tool")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = mr.Get("pageviews:blogs:post")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	assert.Equal(t, []string{"pageviews:blogs:post", "pageviews:projects:tool"}, mr.Keys(), "no dedup markers are written")
}

func TestBumpViews_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "etcd"}}
	assert.ErrorContains(t, bumpViews(context.Background(), cfg, "", []string{"a"}, zap.NewNop()), "unknown store backend")
}
