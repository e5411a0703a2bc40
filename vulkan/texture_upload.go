package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"viewport-engine/rhi"
)

type texture struct {
	img    *image
	filter rhi.TextureFilter
}

// uploadTexture creates a sampled R8G8B8A8_SRGB image and fills it
// through the staging buffer.
func uploadTexture(g *gpu, st *stager, desc rhi.TextureDesc, pixels []byte) (*texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: texture %dx%d", rhi.ErrInvalidSize, desc.Width, desc.Height)
	}
	if len(pixels) < desc.Width*desc.Height*4 {
		return nil, fmt.Errorf("texture data too short: %d bytes for %dx%d", len(pixels), desc.Width, desc.Height)
	}
	img, err := newImage(g, desc.Width, desc.Height, vk.FormatR8g8b8a8Srgb,
		vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit, vk.ImageAspectColorBit)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture image: %w", err)
	}
	if err := st.toImage(img, desc.Width, desc.Height, pixels); err != nil {
		img.destroy(g)
		return nil, err
	}
	filter := desc.Filter
	if filter != rhi.FilterLinear {
		filter = rhi.FilterNearest
	}
	return &texture{img: img, filter: filter}, nil
}

func (t *texture) destroy(g *gpu) {
	t.img.destroy(g)
}
