package scan

import "github.com/openfluke/webgpu/wgpu"

// kernelID names one of the seven entry points compiled into the
// single scan shader module.
type kernelID int

const (
	kernelPlanFromConstant kernelID = iota
	kernelPlanFromBuffer
	kernelGroupScanInclusive
	kernelGroupScanExclusive
	kernelNextInput
	kernelResolveParentInclusive
	kernelResolveParentExclusive
	kernelCount
)

func (k kernelID) entryPoint() string {
	switch k {
	case kernelPlanFromConstant:
		return "plan_from_constant"
	case kernelPlanFromBuffer:
		return "plan_from_buffer"
	case kernelGroupScanInclusive:
		return "group_scan_inclusive"
	case kernelGroupScanExclusive:
		return "group_scan_exclusive"
	case kernelNextInput:
		return "next_input"
	case kernelResolveParentInclusive:
		return "resolve_parent_inclusive"
	case kernelResolveParentExclusive:
		return "resolve_parent_exclusive"
	default:
		return ""
	}
}

// bindGroupLayoutEntries is the single, explicit bind group layout
// shared by every kernel in this module — grounded on gpu/dense.go's
// "Explicit Bind Group Layout to avoid auto layout issues in WASM".
// Fixed slots mean every kernel's bind group has the same shape: the
// engine builds one for the planner dispatch and one per level
// dispatch, differing only in the binding 7 scalar-argument buffer.
func bindGroupLayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // input
		{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},         // prefix_a
		{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},         // prefix_b
		{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},         // level_offsets
		{Binding: 4, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},         // level_count
		{Binding: 5, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},         // indirect_args
		{Binding: 6, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // input_count_buf
		{Binding: 7, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},         // params
	}
}

// shaderSource is the WGSL module compiled once in Engine.Init. It
// contains the planner, group-scan, carry-copy, and resolve-parent
// kernels the engine dispatches at each level of the hierarchy.
//
// The within-group scan is a Hillis-Steele shared-memory sweep over
// the fixed 128-wide workgroup, built like gpu/softmax.go's parallel
// reductions (shared array + workgroupBarrier + strided loop) but with
// the stride doubling from 1 up to 64 rather than halving, as a scan
// needs.
const shaderSource = `
struct LevelInfo {
	count: u32,
	input_offset: u32,
	output_offset: u32,
	parent_offset: u32,
};

struct Params {
	a: u32,
	b: u32,
	c: u32,
	level_k: u32,
};

@group(0) @binding(0) var<storage, read> input_buf : array<u32>;
@group(0) @binding(1) var<storage, read_write> prefix_a : array<u32>;
@group(0) @binding(2) var<storage, read_write> prefix_b : array<u32>;
@group(0) @binding(3) var<storage, read_write> level_offsets : array<LevelInfo>;
@group(0) @binding(4) var<storage, read_write> level_count : array<u32>;
@group(0) @binding(5) var<storage, read_write> indirect_args : array<u32>;
@group(0) @binding(6) var<storage, read> input_count_buf : array<u32>;
@group(0) @binding(7) var<uniform> params : Params;

const GROUP_SIZE: u32 = 128u;

fn plan_levels(n: u32, max_levels: u32) {
	var count: u32 = n;
	var offset: u32 = 0u;
	var active_levels: u32 = 0u;

	for (var k: u32 = 0u; k < max_levels; k = k + 1u) {
		var groups: u32 = 0u;
		if (count > 0u) {
			groups = (count + GROUP_SIZE - 1u) / GROUP_SIZE;
		}
		var aligned: u32 = GROUP_SIZE;
		if (count > 0u) {
			aligned = groups * GROUP_SIZE;
		}

		level_offsets[k].count = count;
		level_offsets[k].input_offset = offset;
		level_offsets[k].output_offset = offset;
		level_offsets[k].parent_offset = 0u;

		indirect_args[k * 3u + 0u] = groups;
		indirect_args[k * 3u + 1u] = 1u;
		indirect_args[k * 3u + 2u] = 1u;

		offset = offset + aligned;
		active_levels = k + 1u;
		if (aligned <= GROUP_SIZE) {
			break;
		}
		count = groups;
	}

	for (var k: u32 = active_levels; k < max_levels; k = k + 1u) {
		level_offsets[k].count = 0u;
		level_offsets[k].input_offset = 0u;
		level_offsets[k].output_offset = 0u;
		level_offsets[k].parent_offset = 0u;
		indirect_args[k * 3u + 0u] = 0u;
		indirect_args[k * 3u + 1u] = 1u;
		indirect_args[k * 3u + 2u] = 1u;
	}

	for (var k: u32 = 0u; k + 1u < active_levels; k = k + 1u) {
		level_offsets[k].parent_offset = level_offsets[k + 1u].input_offset;
	}

	level_count[0] = active_levels;
}

@compute @workgroup_size(1)
fn plan_from_constant() {
	plan_levels(params.a, params.b);
}

@compute @workgroup_size(1)
fn plan_from_buffer() {
	let n = input_count_buf[params.c / 4u];
	plan_levels(n, params.b);
}

var<workgroup> scan_shared: array<u32, 128>;

fn group_scan_common(gid: vec3<u32>, lid: vec3<u32>, wg: vec3<u32>, exclusive: bool) {
	let k = params.level_k;
	let info = level_offsets[k];
	let idx = gid.x;
	let tid = lid.x;
	let group_id = wg.x;

	var v: u32 = 0u;
	if (idx < info.count) {
		if (k == 0u) {
			v = input_buf[idx];
		} else {
			v = prefix_b[info.input_offset + idx];
		}
	}
	scan_shared[tid] = v;
	workgroupBarrier();

	for (var stride: u32 = 1u; stride < GROUP_SIZE; stride = stride << 1u) {
		var added: u32 = 0u;
		if (tid >= stride) {
			added = scan_shared[tid - stride];
		}
		workgroupBarrier();
		scan_shared[tid] = scan_shared[tid] + added;
		workgroupBarrier();
	}

	let inclusive_val = scan_shared[tid];
	if (idx < info.count) {
		if (exclusive) {
			prefix_a[info.output_offset + idx] = inclusive_val - v;
		} else {
			prefix_a[info.output_offset + idx] = inclusive_val;
		}
	}

	if (tid == GROUP_SIZE - 1u && k + 1u < level_count[0]) {
		let total = scan_shared[GROUP_SIZE - 1u];
		prefix_a[info.parent_offset + group_id] = total;
	}
}

@compute @workgroup_size(128)
fn group_scan_inclusive(
	@builtin(global_invocation_id) gid: vec3<u32>,
	@builtin(local_invocation_id) lid: vec3<u32>,
	@builtin(workgroup_id) wg: vec3<u32>,
) {
	group_scan_common(gid, lid, wg, false);
}

@compute @workgroup_size(128)
fn group_scan_exclusive(
	@builtin(global_invocation_id) gid: vec3<u32>,
	@builtin(local_invocation_id) lid: vec3<u32>,
	@builtin(workgroup_id) wg: vec3<u32>,
) {
	group_scan_common(gid, lid, wg, true);
}

@compute @workgroup_size(128)
fn next_input(@builtin(global_invocation_id) gid: vec3<u32>) {
	let k = params.level_k;
	let info = level_offsets[k];
	let idx = gid.x;
	prefix_b[info.input_offset + idx] = prefix_a[info.input_offset + idx];
}

fn resolve_parent_common(gid: vec3<u32>, wg: vec3<u32>, exclusive: bool) {
	let k = params.level_k;
	let info = level_offsets[k];
	let idx = gid.x;
	if (idx >= info.count) {
		return;
	}
	let group_id = wg.x;

	var parent_val: u32 = 0u;
	if (exclusive) {
		parent_val = prefix_a[info.parent_offset + group_id];
	} else if (group_id > 0u) {
		parent_val = prefix_a[info.parent_offset + group_id - 1u];
	}

	prefix_a[info.output_offset + idx] = prefix_a[info.output_offset + idx] + parent_val;
}

@compute @workgroup_size(128)
fn resolve_parent_inclusive(
	@builtin(global_invocation_id) gid: vec3<u32>,
	@builtin(workgroup_id) wg: vec3<u32>,
) {
	resolve_parent_common(gid, wg, false);
}

@compute @workgroup_size(128)
fn resolve_parent_exclusive(
	@builtin(global_invocation_id) gid: vec3<u32>,
	@builtin(workgroup_id) wg: vec3<u32>,
) {
	resolve_parent_common(gid, wg, true);
}
`
