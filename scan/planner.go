package scan

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// planner owns the two tiny uniform buffers that feed plan_from_constant
// and plan_from_buffer. Each is rewritten fresh via queue.WriteBuffer
// immediately before the call that reads it, so there is never a
// stale-value hazard: the write and the read that depends on it are
// always in the same DispatchDirect or DispatchIndirect call.
type planner struct {
	directArgs   *wgpu.Buffer
	indirectArgs *wgpu.Buffer
}

func newPlanner(device *wgpu.Device) (*planner, error) {
	direct, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "scan_planner_args_direct",
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("scan: create planner args (direct): %w", err)
	}

	indirect, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "scan_planner_args_indirect",
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		direct.Destroy()
		return nil, fmt.Errorf("scan: create planner args (indirect): %w", err)
	}

	return &planner{directArgs: direct, indirectArgs: indirect}, nil
}

// setDirectArgs writes the (count, maxLevels) pair plan_from_constant
// reads as params.a / params.b.
func (p *planner) setDirectArgs(queue *wgpu.Queue, count, maxLevels uint32) {
	queue.WriteBuffer(p.directArgs, 0, wgpu.ToBytes(ScalarArgs{A: count, B: maxLevels}.words()))
}

// setIndirectArgs writes the (maxLevels, countByteOffset) pair
// plan_from_buffer reads as params.b / params.c.
func (p *planner) setIndirectArgs(queue *wgpu.Queue, maxLevels uint32, countByteOffset uint64) {
	queue.WriteBuffer(p.indirectArgs, 0, wgpu.ToBytes(ScalarArgs{B: maxLevels, C: uint32(countByteOffset)}.words()))
}

func (p *planner) dispose() {
	if p == nil {
		return
	}
	if p.directArgs != nil {
		p.directArgs.Destroy()
		p.directArgs = nil
	}
	if p.indirectArgs != nil {
		p.indirectArgs.Destroy()
		p.indirectArgs = nil
	}
}
