package scan

import (
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// ReadU32 copies count u32 values out of buf starting at byteOffset,
// via a staging buffer mapped for host reads. It is a test and
// diagnostics helper — production dispatch code never reads buffers
// back, since the engine's contract ends at "commands are appended to
// the recorder".
func ReadU32(device *wgpu.Device, queue *wgpu.Queue, buf *wgpu.Buffer, byteOffset uint64, count uint32) ([]uint32, error) {
	sizeBytes := uint64(count) * 4

	staging, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "scan_read_staging",
		Size:  sizeBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("scan: create staging buffer: %w", err)
	}
	defer staging.Destroy()

	enc, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("scan: create command encoder: %w", err)
	}
	enc.CopyBufferToBuffer(buf, byteOffset, staging, 0, sizeBytes)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("scan: finish command encoder: %w", err)
	}
	queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, sizeBytes, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("scan: map staging buffer: status %v", status)
		}
		close(done)
	})
	if err != nil {
		return nil, fmt.Errorf("scan: MapAsync: %w", err)
	}

	timeout := time.After(5 * time.Second)
waitLoop:
	for {
		device.Poll(false, nil)
		select {
		case <-done:
			break waitLoop
		case <-timeout:
			return nil, fmt.Errorf("scan: read timed out after 5s")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	data := staging.GetMappedRange(0, uint(sizeBytes))
	if data == nil {
		return nil, fmt.Errorf("scan: GetMappedRange returned nil")
	}
	result := make([]uint32, count)
	copy(result, wgpu.FromBytes[uint32](data))
	staging.Unmap()
	return result, nil
}
