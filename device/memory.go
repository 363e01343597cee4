package device

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
)

// Buffer is a buffer bound to its own memory allocation.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
}

// Image is an image bound to its own memory allocation.
type Image struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	Format vk.Format
	Width  uint32
	Height uint32
}

// DepthFormats are the depth formats tried for depth attachments, in order of
// preference.
var DepthFormats = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// FindMemoryType returns the index of the first memory type allowed by
// typeFilter which has all of properties.
func (d *Device) FindMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		memType := d.memory.MemoryTypes[i]

		if typeFilter&(1<<i) == 0 {
			continue
		}

		if memType.PropertyFlags&properties != properties {
			continue
		}

		return i, nil
	}

	return 0, errors.Errorf("failed to find suitable memory type for filter %#b and properties %#x",
		typeFilter, properties)
}

func (d *Device) allocate(reqs vk.MemoryRequirements, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	memTypeIndex, err := d.FindMemoryType(reqs.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	return d.drv.AllocateMemory(d.handle, &allocInfo)
}

// CreateBuffer creates an exclusive buffer of size bytes and binds it to newly
// allocated memory with the given properties.
func (d *Device) CreateBuffer(
	size vk.DeviceSize,
	usage vk.BufferUsageFlags,
	properties vk.MemoryPropertyFlags,
) (Buffer, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	handle, err := d.drv.CreateBuffer(d.handle, &bufferInfo)
	if err != nil {
		return Buffer{}, errors.Wrap(err, "failed to create buffer")
	}
	buf := Buffer{Handle: handle, Size: size}

	reqs := d.drv.BufferMemoryRequirements(d.handle, handle)
	buf.Memory, err = d.allocate(reqs, properties)
	if err != nil {
		d.DestroyBuffer(buf)
		return Buffer{}, errors.Wrap(err, "failed to allocate buffer memory")
	}

	if err := d.drv.BindBufferMemory(d.handle, handle, buf.Memory, 0); err != nil {
		d.DestroyBuffer(buf)
		return Buffer{}, errors.Wrap(err, "failed to bind buffer memory")
	}

	return buf, nil
}

// DestroyBuffer destroys buf and frees its memory.
func (d *Device) DestroyBuffer(buf Buffer) {
	if buf.Handle != vk.NullBuffer {
		d.drv.DestroyBuffer(d.handle, buf.Handle)
	}
	if buf.Memory != vk.NullDeviceMemory {
		d.drv.FreeMemory(d.handle, buf.Memory)
	}
}

// Write copies data to the start of the host visible memory of buf.
func (d *Device) Write(buf Buffer, data []byte) error {
	if vk.DeviceSize(len(data)) > buf.Size {
		return gpu.Invalidf("writing %d bytes to a buffer of %d", len(data), buf.Size)
	}
	return errors.Wrap(d.drv.WriteMemory(d.handle, buf.Memory, 0, data), "writing buffer memory")
}

// Read returns the contents of the host visible memory of buf.
func (d *Device) Read(buf Buffer) ([]byte, error) {
	data, err := d.drv.ReadMemory(d.handle, buf.Memory, 0, buf.Size)
	return data, errors.Wrap(err, "reading buffer memory")
}

// CreateImage creates a single mip, single layer 2D image and binds it to
// newly allocated memory with the given properties.
func (d *Device) CreateImage(
	width uint32,
	height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	properties vk.MemoryPropertyFlags,
) (Image, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}

	handle, err := d.drv.CreateImage(d.handle, &imageInfo)
	if err != nil {
		return Image{}, errors.Wrap(err, "failed to create an image")
	}
	img := Image{Handle: handle, Format: format, Width: width, Height: height}

	reqs := d.drv.ImageMemoryRequirements(d.handle, handle)
	img.Memory, err = d.allocate(reqs, properties)
	if err != nil {
		d.DestroyImage(img)
		return Image{}, errors.Wrap(err, "failed to allocate image memory")
	}

	if err := d.drv.BindImageMemory(d.handle, handle, img.Memory, 0); err != nil {
		d.DestroyImage(img)
		return Image{}, errors.Wrap(err, "failed to bind image memory")
	}

	return img, nil
}

// DestroyImage destroys img and frees its memory.
func (d *Device) DestroyImage(img Image) {
	if img.Handle != vk.NullImage {
		d.drv.DestroyImage(d.handle, img.Handle)
	}
	if img.Memory != vk.NullDeviceMemory {
		d.drv.FreeMemory(d.handle, img.Memory)
	}
}

// CreateImageView creates a 2D view of the first mip level and layer of image
// with identity swizzle.
func (d *Device) CreateImageView(
	image vk.Image,
	format vk.Format,
	aspectFlags vk.ImageAspectFlags,
) (vk.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	view, err := d.drv.CreateImageView(d.handle, &createInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create image view")
	}
	return view, nil
}

// FindSupportedFormat returns the first of candidates which supports features
// with the given tiling.
func (d *Device) FindSupportedFormat(
	candidates []vk.Format,
	tiling vk.ImageTiling,
	features vk.FormatFeatureFlags,
) (vk.Format, error) {
	for _, format := range candidates {
		props := d.drv.FormatProperties(d.physical.Handle, format)

		if tiling == vk.ImageTilingLinear &&
			(props.LinearTilingFeatures&features) == features {
			return format, nil
		}

		if tiling == vk.ImageTilingOptimal &&
			(props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return vk.FormatUndefined, &gpu.UnsupportedFormatError{
		Candidates: candidates,
		Tiling:     tiling,
		Features:   features,
	}
}

// FindDepthFormat returns the first of DepthFormats usable as an optimally
// tiled depth attachment.
func (d *Device) FindDepthFormat() (vk.Format, error) {
	return d.FindSupportedFormat(
		DepthFormats,
		vk.ImageTilingOptimal,
		vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit),
	)
}

// HasStencilComponent returns true for depth formats with a stencil part.
func HasStencilComponent(format vk.Format) bool {
	return format == vk.FormatD32SfloatS8Uint || format == vk.FormatD24UnormS8Uint
}
