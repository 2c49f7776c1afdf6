package scan

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// SupportResources owns the scratch buffers a scan dispatch needs:
// the two prefix buffers, the level-count scalar, the level-offsets
// table, the indirect-dispatch-args table, and one tiny uniform buffer
// per level holding that level's fixed index, satisfying the
// scalar-argument ABI every kernel reads its level number from. It
// never owns the caller's input buffer.
//
// Capacity only ever grows: Resize is a no-op when the new count fits
// inside the current allocation, and releases everything before
// reallocating otherwise. Dispose is idempotent.
type SupportResources struct {
	PrefixA          *wgpu.Buffer
	PrefixB          *wgpu.Buffer
	LevelCountScalar *wgpu.Buffer
	LevelOffsets     *wgpu.Buffer
	IndirectArgs     *wgpu.Buffer
	LevelIndexArgs   []*wgpu.Buffer

	AlignedElementCount uint32
	MaxBufferCount      uint32
	MaxLevelCount       uint32
}

// Create allocates resources sized for nMax elements. Equivalent to
// calling Resize on a freshly zeroed SupportResources.
func Create(device *wgpu.Device, queue *wgpu.Queue, nMax uint32, labelPrefix string) (*SupportResources, error) {
	r := &SupportResources{}
	if err := r.Resize(device, queue, nMax, labelPrefix); err != nil {
		return nil, err
	}
	return r, nil
}

// Resize grows the resources to cover nMax elements, releasing and
// reallocating everything if the current capacity is insufficient.
// It keeps the existing allocation untouched when nMax already fits.
func (r *SupportResources) Resize(device *wgpu.Device, queue *wgpu.Queue, nMax uint32, labelPrefix string) error {
	want := nMax
	if want == 0 {
		want = 1
	}
	if r.AlignedElementCount >= want {
		return nil
	}
	r.Dispose()

	geo := Plan(nMax)
	Log("scan: resizing %q to nMax=%d -> total=%d levels=%d", labelPrefix, nMax, geo.TotalSize, geo.LevelCount)

	var err error
	r.PrefixA, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: labelPrefix + "_PrefixA",
		Size:  uint64(geo.TotalSize) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Dispose()
		return fmt.Errorf("scan: create prefix_a: %w", err)
	}

	r.PrefixB, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: labelPrefix + "_PrefixB",
		Size:  uint64(geo.TotalSize) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Dispose()
		return fmt.Errorf("scan: create prefix_b: %w", err)
	}

	r.LevelCountScalar, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: labelPrefix + "_LevelCount",
		Size:  4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Dispose()
		return fmt.Errorf("scan: create level_count_scalar: %w", err)
	}

	r.LevelOffsets, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: labelPrefix + "_LevelOffsets",
		Size:  uint64(geo.LevelCount) * levelInfoByteSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Dispose()
		return fmt.Errorf("scan: create level_offsets: %w", err)
	}

	r.IndirectArgs, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: labelPrefix + "_IndirectArgs",
		Size:  uint64(geo.LevelCount) * indirectArgsSlotSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Dispose()
		return fmt.Errorf("scan: create indirect_args: %w", err)
	}

	r.LevelIndexArgs = make([]*wgpu.Buffer, geo.LevelCount)
	for k := uint32(0); k < geo.LevelCount; k++ {
		buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s_LevelIndex%d", labelPrefix, k),
			Size:  16,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			r.Dispose()
			return fmt.Errorf("scan: create level_index_args[%d]: %w", k, err)
		}
		r.LevelIndexArgs[k] = buf
		queue.WriteBuffer(buf, 0, wgpu.ToBytes(ScalarArgs{LevelK: k}.words()))
	}

	r.AlignedElementCount = AlignUpGroup(want)
	r.MaxBufferCount = geo.TotalSize
	r.MaxLevelCount = geo.LevelCount
	return nil
}

// Dispose releases every buffer this resource owns. It is safe to call
// more than once, and safe to call on a partially-constructed value
// (each field is nil-checked before Destroy).
func (r *SupportResources) Dispose() {
	if r.PrefixA != nil {
		r.PrefixA.Destroy()
		r.PrefixA = nil
	}
	if r.PrefixB != nil {
		r.PrefixB.Destroy()
		r.PrefixB = nil
	}
	if r.LevelCountScalar != nil {
		r.LevelCountScalar.Destroy()
		r.LevelCountScalar = nil
	}
	if r.LevelOffsets != nil {
		r.LevelOffsets.Destroy()
		r.LevelOffsets = nil
	}
	if r.IndirectArgs != nil {
		r.IndirectArgs.Destroy()
		r.IndirectArgs = nil
	}
	for i, buf := range r.LevelIndexArgs {
		if buf != nil {
			buf.Destroy()
			r.LevelIndexArgs[i] = nil
		}
	}
	r.LevelIndexArgs = nil
	r.AlignedElementCount = 0
	r.MaxBufferCount = 0
	r.MaxLevelCount = 0
}

// Live reports whether the two prefix buffers are allocated.
func (r *SupportResources) Live() bool {
	return r != nil && r.PrefixA != nil && r.PrefixB != nil
}
