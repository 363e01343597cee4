package render

import (
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/models"
	"github.com/NocaToca/Calico/textures"
	"github.com/NocaToca/Calico/unsafer"
)

const textureFormat = vk.FormatR8g8b8a8Srgb

func hostVisible() vk.MemoryPropertyFlags {
	return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) |
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
}

// stage creates a host visible transfer source buffer holding data. The caller
// destroys it.
func (r *Renderer) stage(data []byte) (device.Buffer, error) {
	staging, err := r.dev.CreateBuffer(
		vk.DeviceSize(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		hostVisible(),
	)
	if err != nil {
		return device.Buffer{}, errors.Wrap(err, "creating the staging buffer")
	}

	if err := r.dev.Write(staging, data); err != nil {
		r.dev.DestroyBuffer(staging)
		return device.Buffer{}, err
	}
	return staging, nil
}

// upload copies data into a new device local buffer through a staging buffer.
// The buffer can be read back with ReadBuffer.
func (r *Renderer) upload(data []byte, usage vk.BufferUsageFlags) (device.Buffer, error) {
	staging, err := r.stage(data)
	if err != nil {
		return device.Buffer{}, err
	}
	defer r.dev.DestroyBuffer(staging)

	buf, err := r.dev.CreateBuffer(
		staging.Size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)|
			vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)|
			usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return device.Buffer{}, err
	}

	if err := r.pool.CopyBuffer(staging.Handle, buf.Handle, staging.Size); err != nil {
		r.dev.DestroyBuffer(buf)
		return device.Buffer{}, errors.Wrap(err, "failed to copy staging buffer")
	}

	slog.Debug("buffer uploaded", "size", staging.Size)
	return buf, nil
}

func (r *Renderer) createVertexBuffer(vertices []models.Vertex) error {
	buf, err := r.upload(
		unsafer.SliceToBytes(vertices),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
	)
	if err != nil {
		return err
	}
	r.vertexBuffer = buf
	return nil
}

func (r *Renderer) createIndexBuffer(indices []uint16) error {
	buf, err := r.upload(
		unsafer.SliceToBytes(indices),
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit),
	)
	if err != nil {
		return err
	}
	r.indexBuffer = buf
	return nil
}

// ReadBuffer copies the contents of a device local buffer to the host.
func (r *Renderer) ReadBuffer(buf device.Buffer) ([]byte, error) {
	staging, err := r.dev.CreateBuffer(
		buf.Size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		hostVisible(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating the readback buffer")
	}
	defer r.dev.DestroyBuffer(staging)

	if err := r.pool.CopyBuffer(buf.Handle, staging.Handle, buf.Size); err != nil {
		return nil, errors.Wrap(err, "failed to copy into readback buffer")
	}
	return r.dev.Read(staging)
}

func (r *Renderer) createUniformBuffers(count int) error {
	for i := 0; i < count; i++ {
		buf, err := r.dev.CreateBuffer(
			uniformBufferSize,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			hostVisible(),
		)
		if err != nil {
			return errors.Wrapf(err, "creating buffer[%d]", i)
		}
		r.uniformBuffers = append(r.uniformBuffers, buf)
	}
	return nil
}

func (r *Renderer) createTextureImage(tex *textures.Texture) error {
	staging, err := r.stage(tex.Pixels)
	if err != nil {
		return errors.Wrap(err, "failed to create texture GPU buffer")
	}
	defer r.dev.DestroyBuffer(staging)

	r.texture, err = r.dev.CreateImage(
		tex.Width,
		tex.Height,
		textureFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|
			vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create Vulkan image")
	}

	err = r.pool.TransitionImageLayout(
		r.texture.Handle,
		textureFormat,
		vk.ImageLayoutUndefined,
		vk.ImageLayoutTransferDstOptimal,
	)
	if err != nil {
		return errors.Wrap(err, "transition image layout")
	}

	err = r.pool.CopyBufferToImage(staging.Handle, r.texture.Handle, tex.Width, tex.Height)
	if err != nil {
		return errors.Wrap(err, "copying buffer to image")
	}

	err = r.pool.TransitionImageLayout(
		r.texture.Handle,
		textureFormat,
		vk.ImageLayoutTransferDstOptimal,
		vk.ImageLayoutShaderReadOnlyOptimal,
	)
	if err != nil {
		return errors.Wrap(err, "transitioning to read only optimal layout")
	}

	r.textureView, err = r.dev.CreateImageView(
		r.texture.Handle,
		textureFormat,
		vk.ImageAspectFlags(vk.ImageAspectColorBit),
	)
	return err
}

func (r *Renderer) createTextureSampler() error {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           r.dev.MaxSamplerAnisotropy(),
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  0,
	}

	sampler, err := r.drv.CreateSampler(r.dev.Handle(), &samplerInfo)
	if err != nil {
		return errors.Wrap(err, "failed to create sampler")
	}
	r.sampler = sampler
	return nil
}

func (r *Renderer) createDescriptorPool(count int) error {
	poolSizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: uint32(count),
		},
		{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(count),
		},
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       uint32(count),
	}

	pool, err := r.drv.CreateDescriptorPool(r.dev.Handle(), &poolInfo)
	if err != nil {
		return errors.Wrap(err, "failed to create descriptor pool")
	}
	r.descriptorPool = pool
	return nil
}

func (r *Renderer) createDescriptorSets() error {
	layouts := make([]vk.DescriptorSetLayout, len(r.uniformBuffers))
	for i := range layouts {
		layouts[i] = r.pipeline.DescriptorSetLayout()
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     r.descriptorPool,
		DescriptorSetCount: uint32(len(layouts)),
		PSetLayouts:        layouts,
	}

	sets, err := r.drv.AllocateDescriptorSets(r.dev.Handle(), &allocInfo)
	if err != nil {
		return errors.Wrap(err, "failed to allocate descriptor set")
	}
	r.descriptorSets = sets

	for i, set := range r.descriptorSets {
		bufferInfo := vk.DescriptorBufferInfo{
			Buffer: r.uniformBuffers[i].Handle,
			Offset: 0,
			Range:  vk.DeviceSize(vk.WholeSize),
		}

		imageInfo := vk.DescriptorImageInfo{
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			ImageView:   r.textureView,
			Sampler:     r.sampler,
		}

		descriptorWrites := []vk.WriteDescriptorSet{
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      0,
				DstArrayElement: 0,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
			},
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      1,
				DstArrayElement: 0,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
				PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
			},
		}

		r.drv.UpdateDescriptorSets(r.dev.Handle(), descriptorWrites)
	}

	return nil
}
