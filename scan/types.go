package scan

import "github.com/openfluke/webgpu/wgpu"

// LevelInfo mirrors the 16-byte struct the planner kernel writes into
// the level_offsets table, one entry per hierarchy level.
type LevelInfo struct {
	Count        uint32
	InputOffset  uint32
	OutputOffset uint32
	ParentOffset uint32
}

// levelInfoByteSize is sizeof(LevelInfo) on the device: four u32 lanes.
const levelInfoByteSize = 16

// indirectArgsSlotSize is the byte size of one (group_count_x, 1, 1)
// dispatch-indirect slot. A single 3-u32 layout is used per level; the
// 6-arg variant that handled up-sweep and down-sweep dispatch sizes
// separately was dropped since both sweeps dispatch the same group
// count for a given level.
const indirectArgsSlotSize = 12

// IndirectArgsByteOffset returns the byte offset of level k's triple
// within the indirect-args table. Kept as the single helper both the
// planner (as WGSL arithmetic, written to match this exactly) and the
// engine (in Go, reading it back) use, so the two never drift apart.
func IndirectArgsByteOffset(level uint32) uint64 {
	return uint64(level) * indirectArgsSlotSize
}

// ScalarArgs is the 4-lane, 32-bit scalar-argument vector set on the
// compute shader before a dispatch. Lane meaning depends on the
// kernel: the planner uses A/B/C for (N, max_level_count, byte_offset);
// every scan kernel uses only LevelK.
type ScalarArgs struct {
	A, B, C, LevelK uint32
}

// words packs the vector in device lane order for wgpu.ToBytes, as an
// explicit, typed reinterpretation rather than unsafe pointer punning.
func (s ScalarArgs) words() []uint32 {
	return []uint32{s.A, s.B, s.C, s.LevelK}
}

// Variant selects between the inclusive and exclusive scan kernels.
// Resolved once, at record time, into the pair of kernel IDs it needs
// — never branched on inside the up-sweep/down-sweep loops.
type Variant bool

const (
	Inclusive Variant = false
	Exclusive Variant = true
)

func (v Variant) groupScanKernel() kernelID {
	if v == Exclusive {
		return kernelGroupScanExclusive
	}
	return kernelGroupScanInclusive
}

func (v Variant) resolveParentKernel() kernelID {
	if v == Exclusive {
		return kernelResolveParentExclusive
	}
	return kernelResolveParentInclusive
}

// DirectRequest is a single direct-mode scan dispatch: the element
// count is already known on the host.
type DirectRequest struct {
	Exclusive bool
	Count     uint32
	Input     *wgpu.Buffer
	Resources *SupportResources
}

// IndirectRequest is a single indirect-mode scan dispatch: the element
// count lives in a device buffer not yet readable by the host.
type IndirectRequest struct {
	Exclusive             bool
	CountBuffer           *wgpu.Buffer
	CountBufferByteOffset uint64
	Input                 *wgpu.Buffer
	Resources             *SupportResources
}

func (r DirectRequest) variant() Variant {
	if r.Exclusive {
		return Exclusive
	}
	return Inclusive
}

func (r IndirectRequest) variant() Variant {
	if r.Exclusive {
		return Exclusive
	}
	return Inclusive
}
