package interop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/core"
)

func TestChooseSampleCount(t *testing.T) {
	all := SampleMask(Samples1 | Samples2 | Samples4 | Samples8)
	tests := []struct {
		name      string
		requested SampleCount
		supported SampleMask
		want      SampleCount
	}{
		{"single", Samples1, all, Samples1},
		{"exact", Samples4, all, Samples4},
		{"highest", Samples8, all, Samples8},
		{"falls back", Samples8, SampleMask(Samples1 | Samples2), Samples2},
		{"skips unsupported", Samples4, SampleMask(Samples1 | Samples8), Samples1},
		{"nothing reported", Samples4, 0, Samples1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseSampleCount(tt.requested, tt.supported))
		})
	}
}

func TestPlanFrameSingleSample(t *testing.T) {
	plan := PlanFrame(FramePlanInput{
		Extent:           Extent{Width: 800, Height: 600},
		Format:           FormatBGRA8Unorm,
		RequestedSamples: Samples1,
		SupportedSamples: SampleMask(Samples1),
		Depth:            true,
		Clear:            core.ColorBlack,
	})
	assert.Equal(t, Samples1, plan.Samples)
	require.Len(t, plan.Attachments, 2)

	color, idx, ok := plan.Attachment(AttachmentColor)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.True(t, color.Shared)
	assert.Equal(t, LoadOpClear, color.Load)
	assert.Equal(t, StoreOpStore, color.Store)
	assert.Equal(t, LayoutShared, color.Final)

	depth, _, ok := plan.Attachment(AttachmentDepth)
	require.True(t, ok)
	assert.Equal(t, FormatD32Float, depth.Format)
	assert.Equal(t, StoreOpDontCare, depth.Store)

	_, _, ok = plan.Attachment(AttachmentResolve)
	assert.False(t, ok)

	assert.Equal(t, Viewport{Width: 800, Height: 600, MaxDepth: 1}, plan.Viewport)
	assert.Equal(t, Rect{Width: 800, Height: 600}, plan.Scissor)
	assert.Equal(t, uint32(core.VertexStride), plan.Vertex.Stride)
}

func TestPlanFrameMSAAResolvesIntoSharedImage(t *testing.T) {
	plan := PlanFrame(FramePlanInput{
		Extent:           Extent{Width: 64, Height: 32},
		Format:           FormatRGBA8Unorm,
		RequestedSamples: Samples8,
		SupportedSamples: SampleMask(Samples1 | Samples4),
	})
	assert.Equal(t, Samples4, plan.Samples)
	require.Len(t, plan.Attachments, 2)

	color := plan.Attachments[0]
	assert.False(t, color.Shared)
	assert.Equal(t, Samples4, color.Samples)
	assert.Equal(t, StoreOpDontCare, color.Store)

	resolve, idx, ok := plan.Attachment(AttachmentResolve)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.True(t, resolve.Shared)
	assert.Equal(t, Samples1, resolve.Samples)
	assert.Equal(t, LayoutShared, resolve.Final)
	assert.Equal(t, resolve, plan.SharedAttachment())
}
