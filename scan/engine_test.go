package scan

import (
	"testing"

	"github.com/openfluke/webgpu/wgpu"
	"github.com/oakmere/scangpu/gpuctx"
	"github.com/oakmere/scangpu/scan/internal/refscan"
)

// setup acquires the shared GPU context and a ready Engine, skipping
// the test when no adapter is available rather than failing the whole
// package — CI and sandboxed environments routinely have no GPU.
func setup(t *testing.T) (*gpuctx.Context, *Engine) {
	t.Helper()
	c, err := gpuctx.Get()
	if err != nil {
		t.Skipf("no GPU context available: %v", err)
	}
	var e Engine
	if err := e.Init(c.Device); err != nil {
		t.Fatalf("Engine.Init: %v", err)
	}
	t.Cleanup(e.Dispose)
	return c, &e
}

func runDirectScan(t *testing.T, c *gpuctx.Context, e *Engine, a []uint32, exclusive bool) []uint32 {
	t.Helper()

	res, err := Create(c.Device, c.Queue, uint32(len(a)), "test")
	if err != nil {
		t.Fatalf("Create resources: %v", err)
	}
	t.Cleanup(res.Dispose)

	input, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "test_input",
		Contents: wgpu.ToBytes(a),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create input buffer: %v", err)
	}
	t.Cleanup(func() { input.Destroy() })

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		t.Fatalf("create command encoder: %v", err)
	}

	err = e.DispatchDirect(enc, c.Queue, DirectRequest{
		Exclusive: exclusive,
		Count:     uint32(len(a)),
		Input:     input,
		Resources: res,
	})
	if err != nil {
		t.Fatalf("DispatchDirect: %v", err)
	}

	cmd, err := enc.Finish(nil)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	c.Queue.Submit(cmd)

	out, err := ReadU32(c.Device, c.Queue, res.PrefixA, 0, uint32(len(a)))
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	return out
}

func TestDispatchDirectInclusiveSingleGroup(t *testing.T) {
	c, e := setup(t)

	a := make([]uint32, 128)
	for i := range a {
		a[i] = uint32(2*i + 1)
	}
	got := runDirectScan(t, c, e, a, false)
	want := refscan.Scan(a, false)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("B[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDispatchDirectExclusiveSingleGroup(t *testing.T) {
	c, e := setup(t)

	a := make([]uint32, 128)
	for i := range a {
		a[i] = uint32(2*i + 1)
	}
	got := runDirectScan(t, c, e, a, true)
	want := refscan.Scan(a, true)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("B[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDispatchDirectTwoLevelInclusive(t *testing.T) {
	c, e := setup(t)

	a := make([]uint32, 1024)
	for i := range a {
		a[i] = 1
	}
	got := runDirectScan(t, c, e, a, false)
	for i := range got {
		want := uint32(i + 1)
		if got[i] != want {
			t.Fatalf("B[%d] = %d, want %d", i, got[i], want)
		}
	}
}

func TestDispatchDirectUnaligned(t *testing.T) {
	c, e := setup(t)

	a := make([]uint32, 200)
	for i := range a {
		a[i] = uint32(i)
	}
	got := runDirectScan(t, c, e, a, false)
	want := refscan.Scan(a, false)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("B[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if got[199] != 19900 {
		t.Errorf("B[199] = %d, want 19900", got[199])
	}
}

func TestDispatchIndirectMatchesDirect(t *testing.T) {
	c, e := setup(t)

	a := make([]uint32, 513)
	for i := range a {
		a[i] = uint32(i % 5)
	}

	res, err := Create(c.Device, c.Queue, uint32(len(a)), "test_indirect")
	if err != nil {
		t.Fatalf("Create resources: %v", err)
	}
	t.Cleanup(res.Dispose)

	input, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "test_indirect_input",
		Contents: wgpu.ToBytes(a),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create input buffer: %v", err)
	}
	t.Cleanup(func() { input.Destroy() })

	countBuf, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "test_indirect_count",
		Contents: wgpu.ToBytes([]uint32{uint32(len(a))}),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create count buffer: %v", err)
	}
	t.Cleanup(func() { countBuf.Destroy() })

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		t.Fatalf("create command encoder: %v", err)
	}

	err = e.DispatchIndirect(enc, c.Queue, IndirectRequest{
		Exclusive:             false,
		CountBuffer:           countBuf,
		CountBufferByteOffset: 0,
		Input:                 input,
		Resources:             res,
	})
	if err != nil {
		t.Fatalf("DispatchIndirect: %v", err)
	}

	cmd, err := enc.Finish(nil)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	c.Queue.Submit(cmd)

	got, err := ReadU32(c.Device, c.Queue, res.PrefixA, 0, uint32(len(a)))
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	want := refscan.Scan(a, false)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("B[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	direct := runDirectScan(t, c, e, a, false)
	for i := range direct {
		if got[i] != direct[i] {
			t.Fatalf("indirect B[%d] = %d, direct B[%d] = %d", i, got[i], i, direct[i])
		}
	}
}

func TestDispatchDirectZeroLength(t *testing.T) {
	c, e := setup(t)

	res, err := Create(c.Device, c.Queue, 0, "test_zero")
	if err != nil {
		t.Fatalf("Create resources: %v", err)
	}
	t.Cleanup(res.Dispose)

	input, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "test_zero_input",
		Contents: wgpu.ToBytes([]uint32{0}),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create input buffer: %v", err)
	}
	t.Cleanup(func() { input.Destroy() })

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		t.Fatalf("create command encoder: %v", err)
	}
	if err := e.DispatchDirect(enc, c.Queue, DirectRequest{
		Count:     0,
		Input:     input,
		Resources: res,
	}); err != nil {
		t.Fatalf("DispatchDirect with N=0: %v", err)
	}
	cmd, err := enc.Finish(nil)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	c.Queue.Submit(cmd)
}

func TestDispatchDirectPreconditions(t *testing.T) {
	_, e := setup(t)

	res := &SupportResources{}
	enc, err := e.device.CreateCommandEncoder(nil)
	if err != nil {
		t.Fatalf("create command encoder: %v", err)
	}

	err = e.DispatchDirect(enc, e.device.GetQueue(), DirectRequest{
		Count:     1,
		Input:     nil,
		Resources: res,
	})
	if err != ErrInvalidResources {
		t.Errorf("expected ErrInvalidResources for unlived resources, got %v", err)
	}
}

func TestDispatchDirectCapacityExceeded(t *testing.T) {
	c, e := setup(t)

	res, err := Create(c.Device, c.Queue, 128, "test_capacity")
	if err != nil {
		t.Fatalf("Create resources: %v", err)
	}
	t.Cleanup(res.Dispose)

	input, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "test_capacity_input",
		Contents: wgpu.ToBytes(make([]uint32, 128)),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create input buffer: %v", err)
	}
	t.Cleanup(func() { input.Destroy() })

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		t.Fatalf("create command encoder: %v", err)
	}

	err = e.DispatchDirect(enc, c.Queue, DirectRequest{
		Count:     res.AlignedElementCount + 1,
		Input:     input,
		Resources: res,
	})
	if err != ErrCapacityExceeded {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestDispatchIndirectNilInput(t *testing.T) {
	c, e := setup(t)

	res, err := Create(c.Device, c.Queue, 128, "test_nil_input")
	if err != nil {
		t.Fatalf("Create resources: %v", err)
	}
	t.Cleanup(res.Dispose)

	countBuf, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "test_nil_input_count",
		Contents: wgpu.ToBytes([]uint32{128}),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create count buffer: %v", err)
	}
	t.Cleanup(func() { countBuf.Destroy() })

	err = e.DispatchIndirect(nil, c.Queue, IndirectRequest{
		CountBuffer: countBuf,
		Input:       nil,
		Resources:   res,
	})
	if err != ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput for nil Input, got %v", err)
	}
}

func TestDispatchIndirectNilCountBuffer(t *testing.T) {
	c, e := setup(t)

	res, err := Create(c.Device, c.Queue, 128, "test_nil_count")
	if err != nil {
		t.Fatalf("Create resources: %v", err)
	}
	t.Cleanup(res.Dispose)

	input, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "test_nil_count_input",
		Contents: wgpu.ToBytes(make([]uint32, 128)),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("create input buffer: %v", err)
	}
	t.Cleanup(func() { input.Destroy() })

	err = e.DispatchIndirect(nil, c.Queue, IndirectRequest{
		CountBuffer: nil,
		Input:       input,
		Resources:   res,
	})
	if err != ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput for nil CountBuffer, got %v", err)
	}
}

func TestEngineDispatchBeforeInit(t *testing.T) {
	var e Engine
	res := &SupportResources{}
	err := e.DispatchDirect(nil, nil, DirectRequest{Resources: res})
	if err != ErrKernelNotLoaded {
		t.Errorf("expected ErrKernelNotLoaded, got %v", err)
	}
}
