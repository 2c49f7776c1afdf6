package scan

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// Engine orchestrates the up-sweep and down-sweep passes across all
// levels of the hierarchy. It owns the compiled shader module, one
// compute pipeline per kernel, and a handful of small scratch buffers
// used only to satisfy the scalar-argument ABI — never the caller's
// input or the SupportResources it is handed per call.
//
// An Engine is created with Init and must be Dispose'd; using it
// before Init or after Dispose returns ErrKernelNotLoaded.
type Engine struct {
	device *wgpu.Device

	module          *wgpu.ShaderModule
	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	pipelines       [kernelCount]*wgpu.ComputePipeline

	planner          *planner
	emptyCountBuffer *wgpu.Buffer // fills the input_count_buf slot when unused

	loaded bool
}

// Init compiles the scan shader module and builds every pipeline and
// the fixed bind group layout. Call once per device.
func (e *Engine) Init(device *wgpu.Device) error {
	e.Dispose()

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "scan_module",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderSource},
	})
	if err != nil {
		return fmt.Errorf("scan: compile shader module: %w", err)
	}

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "scan_bgl",
		Entries: bindGroupLayoutEntries(),
	})
	if err != nil {
		module.Release()
		return fmt.Errorf("scan: create bind group layout: %w", err)
	}

	pl, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "scan_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		module.Release()
		return fmt.Errorf("scan: create pipeline layout: %w", err)
	}

	var pipelines [kernelCount]*wgpu.ComputePipeline
	for k := kernelID(0); k < kernelCount; k++ {
		pipelines[k], err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  "scan_" + k.entryPoint(),
			Layout: pl,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: k.entryPoint(),
			},
		})
		if err != nil {
			pl.Release()
			bgl.Release()
			module.Release()
			return fmt.Errorf("scan: create pipeline for %s: %w", k.entryPoint(), err)
		}
	}

	p, err := newPlanner(device)
	if err != nil {
		pl.Release()
		bgl.Release()
		module.Release()
		return fmt.Errorf("scan: init planner: %w", err)
	}

	emptyCount, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "scan_empty_count_buf",
		Size:  4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("scan: create empty count buffer: %w", err)
	}

	e.device = device
	e.module = module
	e.bindGroupLayout = bgl
	e.pipelineLayout = pl
	e.pipelines = pipelines
	e.planner = p
	e.emptyCountBuffer = emptyCount
	e.loaded = true
	return nil
}

// Dispose releases every GPU resource the engine owns. Safe to call
// more than once.
func (e *Engine) Dispose() {
	for i, p := range e.pipelines {
		if p != nil {
			p.Release()
			e.pipelines[i] = nil
		}
	}
	if e.pipelineLayout != nil {
		e.pipelineLayout.Release()
		e.pipelineLayout = nil
	}
	if e.bindGroupLayout != nil {
		e.bindGroupLayout.Release()
		e.bindGroupLayout = nil
	}
	if e.module != nil {
		e.module.Release()
		e.module = nil
	}
	if e.planner != nil {
		e.planner.dispose()
		e.planner = nil
	}
	if e.emptyCountBuffer != nil {
		e.emptyCountBuffer.Destroy()
		e.emptyCountBuffer = nil
	}
	e.device = nil
	e.loaded = false
}

// buildBindGroup constructs a bind group over the shared layout for one
// dispatch of a DispatchDirect/DispatchIndirect call; argsBuf fills the
// binding 7 scalar-argument slot. A call builds one for the planner and
// one per level dispatch.
func (e *Engine) buildBindGroup(res *SupportResources, input, countBuf *wgpu.Buffer, argsBuf *wgpu.Buffer) (*wgpu.BindGroup, error) {
	if countBuf == nil {
		countBuf = e.emptyCountBuffer
	}
	return e.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "scan_bind_group",
		Layout: e.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: input, Size: input.GetSize()},
			{Binding: 1, Buffer: res.PrefixA, Size: res.PrefixA.GetSize()},
			{Binding: 2, Buffer: res.PrefixB, Size: res.PrefixB.GetSize()},
			{Binding: 3, Buffer: res.LevelOffsets, Size: res.LevelOffsets.GetSize()},
			{Binding: 4, Buffer: res.LevelCountScalar, Size: res.LevelCountScalar.GetSize()},
			{Binding: 5, Buffer: res.IndirectArgs, Size: res.IndirectArgs.GetSize()},
			{Binding: 6, Buffer: countBuf, Size: countBuf.GetSize()},
			{Binding: 7, Buffer: argsBuf, Size: argsBuf.GetSize()},
		},
	})
}

func (e *Engine) dispatchKernel(enc *wgpu.CommandEncoder, bg *wgpu.BindGroup, k kernelID, gx, gy, gz uint32) {
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(e.pipelines[k])
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(gx, gy, gz)
	pass.End()
}

func (e *Engine) dispatchKernelIndirect(enc *wgpu.CommandEncoder, bg *wgpu.BindGroup, k kernelID, indirectBuf *wgpu.Buffer, byteOffset uint64) {
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(e.pipelines[k])
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroupsIndirect(indirectBuf, byteOffset)
	pass.End()
}

// DispatchDirect appends a full planner + up-sweep + down-sweep scan
// to enc, for a caller-supplied element count. It never blocks: every
// call just records commands against enc.
func (e *Engine) DispatchDirect(enc *wgpu.CommandEncoder, queue *wgpu.Queue, req DirectRequest) error {
	if !e.loaded {
		return ErrKernelNotLoaded
	}
	res := req.Resources
	if !res.Live() {
		return ErrInvalidResources
	}
	if req.Input == nil {
		return ErrInvalidInput
	}
	if req.Count > res.AlignedElementCount {
		return ErrCapacityExceeded
	}

	e.planner.setDirectArgs(queue, req.Count, res.MaxLevelCount)

	bg, err := e.buildBindGroup(res, req.Input, nil, e.planner.directArgs)
	if err != nil {
		return fmt.Errorf("scan: build bind group: %w", err)
	}

	e.dispatchKernel(enc, bg, kernelPlanFromConstant, 1, 1, 1)
	return e.runHierarchy(enc, res, req.Input, nil, req.variant())
}

// DispatchIndirect is DispatchDirect's counterpart for an element
// count that lives on the device, at a byte offset inside
// req.CountBuffer, not yet readable by the host.
func (e *Engine) DispatchIndirect(enc *wgpu.CommandEncoder, queue *wgpu.Queue, req IndirectRequest) error {
	if !e.loaded {
		return ErrKernelNotLoaded
	}
	res := req.Resources
	if !res.Live() {
		return ErrInvalidResources
	}
	if req.Input == nil {
		return ErrInvalidInput
	}
	if req.CountBuffer == nil {
		return ErrInvalidInput
	}

	e.planner.setIndirectArgs(queue, res.MaxLevelCount, req.CountBufferByteOffset)

	bg, err := e.buildBindGroup(res, req.Input, req.CountBuffer, e.planner.indirectArgs)
	if err != nil {
		return fmt.Errorf("scan: build bind group: %w", err)
	}

	e.dispatchKernel(enc, bg, kernelPlanFromBuffer, 1, 1, 1)
	return e.runHierarchy(enc, res, req.Input, req.CountBuffer, req.variant())
}

// runHierarchy records the up-sweep and down-sweep once the planner
// dispatch has been appended. Every level's bind group shares every
// buffer binding except binding 7 (the scalar-argument buffer), which
// carries that level's fixed index.
func (e *Engine) runHierarchy(enc *wgpu.CommandEncoder, res *SupportResources, input, countBuf *wgpu.Buffer, variant Variant) error {
	groupScanKernel := variant.groupScanKernel()
	resolveParentKernel := variant.resolveParentKernel()
	maxLevels := res.MaxLevelCount

	// Up-sweep: level 0 .. maxLevels-1.
	for k := uint32(0); k < maxLevels; k++ {
		levelBG, err := e.bindGroupForLevel(res, input, countBuf, k)
		if err != nil {
			return err
		}
		Log("scan: up-sweep level %d", k)
		e.dispatchKernelIndirect(enc, levelBG, groupScanKernel, res.IndirectArgs, IndirectArgsByteOffset(k))

		if k+1 < maxLevels {
			nextBG, err := e.bindGroupForLevel(res, input, countBuf, k+1)
			if err != nil {
				return err
			}
			e.dispatchKernelIndirect(enc, nextBG, kernelNextInput, res.IndirectArgs, IndirectArgsByteOffset(k+1))
		}
	}

	// Down-sweep: level maxLevels-1 .. 1.
	for k := maxLevels - 1; k >= 1; k-- {
		levelBG, err := e.bindGroupForLevel(res, input, countBuf, k-1)
		if err != nil {
			return err
		}
		Log("scan: down-sweep level %d", k-1)
		e.dispatchKernelIndirect(enc, levelBG, resolveParentKernel, res.IndirectArgs, IndirectArgsByteOffset(k-1))
	}
	return nil
}

// bindGroupForLevel returns a bind group identical to the call's main
// bind group except for binding 7, which carries level k's fixed
// scalar-argument buffer so the kernel can see "the level index".
func (e *Engine) bindGroupForLevel(res *SupportResources, input, countBuf *wgpu.Buffer, level uint32) (*wgpu.BindGroup, error) {
	return e.buildBindGroup(res, input, countBuf, res.LevelIndexArgs[level])
}
