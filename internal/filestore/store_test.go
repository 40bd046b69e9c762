package filestore

import (
	"testing"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in       string
		want     Location
		isPrefix bool
		wantErr  bool
	}{
		{in: "s3://fixtures/regions.yaml", want: Location{"fixtures", "regions.yaml"}},
		{in: "s3://fixtures/seed/", want: Location{"fixtures", "seed/"}, isPrefix: true},
		{in: "s3://fixtures", want: Location{"fixtures", ""}, isPrefix: true},
		{in: "s3:///key", wantErr: true},
		{in: "fixtures/regions.yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocation(tt.in)
			if tt.wantErr {
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.isPrefix, got.IsPrefix())
		})
	}

	assert.Equal(t, "s3://b/k.yaml", Location{"b", "k.yaml"}.String())
}

func TestConfig(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.Enabled())

	cfg := DefaultConfig("localhost:9000", "a", "b")
	assert.True(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())

	cfg.Provider = "gcs"
	assert.True(t, errs.IsInvalidInput(cfg.Validate()))

	assert.True(t, errs.IsInvalidInput((&Config{}).Validate()))
}

func TestListOptionsMatch(t *testing.T) {
	yaml := ListOptions{Prefix: "seed/", Suffixes: []string{".yaml", ".yml"}}

	tests := []struct {
		opts ListOptions
		key  string
		want bool
	}{
		{ListOptions{}, "anything", true},
		{ListOptions{Prefix: "seed/"}, "seed/sub/", true},
		{ListOptions{Prefix: "seed/"}, "other/a.yaml", false},
		{yaml, "seed/a.yaml", true},
		{yaml, "seed/B.YML", true},
		{yaml, "seed/readme.md", false},
		{yaml, "seed/sub.yaml/", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Match(tt.key))
		})
	}
}
