// Package gpuctx provides a process-wide WebGPU device singleton for
// callers and tests. The scan package itself never reaches for this —
// every scan.Engine and scan.SupportResources is handed a *wgpu.Device
// explicitly — but acquiring one is boilerplate every caller needs, so
// it lives here once instead of in every test file.
package gpuctx

import (
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// Context holds the single WebGPU instance/adapter/device/queue used by
// callers of the scan package.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

var (
	ctx     Context
	once    sync.Once
	initErr error
)

// Get returns the singleton GPU context, initializing it on first call.
// Adapter acquisition falls back from high performance to low power to
// whatever the platform defaults to.
func Get() (*Context, error) {
	once.Do(func() {
		ctx.Instance = wgpu.CreateInstance(nil)
		if ctx.Instance == nil {
			initErr = fmt.Errorf("gpuctx: failed to create WebGPU instance")
			return
		}

		tryInit := func(opts *wgpu.RequestAdapterOptions) error {
			if ctx.Adapter != nil {
				return nil
			}
			var err error
			ctx.Adapter, err = ctx.Instance.RequestAdapter(opts)
			return err
		}

		err := tryInit(&wgpu.RequestAdapterOptions{PowerPreference: wgpu.PowerPreferenceHighPerformance})
		if err != nil && ctx.Adapter == nil {
			Log("gpuctx: high performance adapter failed: %v, falling back to low power", err)
			err = tryInit(&wgpu.RequestAdapterOptions{PowerPreference: wgpu.PowerPreferenceLowPower})
		}
		if err != nil && ctx.Adapter == nil {
			Log("gpuctx: low power adapter failed: %v, trying default", err)
			err = tryInit(nil)
		}
		if ctx.Adapter == nil {
			initErr = fmt.Errorf("gpuctx: no adapter available: %w", err)
			return
		}

		info := ctx.Adapter.GetInfo()
		Log("gpuctx: using GPU adapter %s (vendor %s)", info.Name, info.VendorName)

		ctx.Device, initErr = ctx.Adapter.RequestDevice(nil)
		if initErr != nil {
			return
		}
		ctx.Queue = ctx.Device.GetQueue()
	})

	if initErr != nil {
		return nil, initErr
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("gpuctx: device or queue not initialized")
	}
	return &ctx, nil
}
