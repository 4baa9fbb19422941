package tracing

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr int
	}{
		{name: "disabled is valid", mutate: func(o *Options) { o.ExporterType = "bogus" }},
		{name: "enabled defaults", mutate: func(o *Options) { o.Enabled = true }},
		{name: "missing endpoint", mutate: func(o *Options) {
			o.Enabled = true
			o.Endpoint = ""
		}, wantErr: 1},
		{name: "stdout needs no endpoint", mutate: func(o *Options) {
			o.Enabled = true
			o.ExporterType = ExporterStdout
			o.Endpoint = ""
		}},
		{name: "bad sampler and ratio", mutate: func(o *Options) {
			o.Enabled = true
			o.SamplerType = "sometimes"
			o.SamplerRatio = 2
		}, wantErr: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.wantErr)
		})
	}
}

func TestOptions_AddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--tracing.enabled", "--tracing.exporter-type=stdout", "--tracing.sampler-ratio=0.5"}))
	assert.True(t, o.Enabled)
	assert.Equal(t, ExporterStdout, o.ExporterType)
	assert.InDelta(t, 0.5, o.SamplerRatio, 1e-9)
}
