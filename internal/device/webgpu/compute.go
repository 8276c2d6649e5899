//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/born-ml/hpcg/internal/device"
	"github.com/born-ml/hpcg/internal/parallel"
	"github.com/go-webgpu/webgpu/wgpu"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name, code string) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	shader := b.compileShader(name, code)
	// Auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer and uploads initial data.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer with 16-byte alignment.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	padded := make([]byte, alignedSize)
	copy(padded, data)
	return b.createBuffer(padded, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
// Mapping waits for all previously submitted work on the queue.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size)
	if err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)

	stagingBuffer.Unmap()

	return result, nil
}

// writeBuffer uploads data into an existing GPU buffer through a mapped staging buffer.
func (b *Backend) writeBuffer(dstBuffer *wgpu.Buffer, data []byte) {
	staging := b.createBuffer(data, wgpu.BufferUsageCopySrc)
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, dstBuffer, 0, uint64(len(data)))
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
}

// dispatch encodes and submits one compute pass and waits for the queue to
// drain. Validation errors raised by the pass are returned as device.ErrKernel.
func (b *Backend) dispatch(pipeline *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry, x, y, z uint32) error {
	b.device.PushErrorScope(wgpu.ErrorFilterValidation)

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)

	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(x, y, z)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
	b.device.Poll(true)

	errType, msg, err := b.device.PopErrorScopeAsync(b.instance)
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrKernel, err)
	}
	if errType != wgpu.ErrorTypeNoError {
		return fmt.Errorf("%w: %s", device.ErrKernel, msg)
	}
	return nil
}

// InjectionMap launches the injection kernel over the coarse grid.
func (b *Backend) InjectionMap(args device.InjectionArgs) error {
	f2c, err := b.indexBuffer(args.F2C)
	if err != nil {
		return fmt.Errorf("webgpu: injection f2c: %w", err)
	}
	c2f, err := b.indexBuffer(args.C2F)
	if err != nil {
		return fmt.Errorf("webgpu: injection c2f: %w", err)
	}

	block := b.launch.InjectBlock
	if block.Volume() > maxWorkgroupSize {
		block = parallel.DefaultLaunchConfig().InjectBlock
	}
	grid := parallel.Cover3(parallel.Dim3{X: int(args.NXC), Y: int(args.NYC), Z: int(args.NZC)}, block)
	if grid.X > maxWorkgroupsPerDim || grid.Y > maxWorkgroupsPerDim || grid.Z > maxWorkgroupsPerDim {
		return fmt.Errorf("webgpu: injection grid %v exceeds dispatch limit", grid)
	}

	//nolint:gosec // G115: extents are validated to fit int32 by the caller.
	params := []uint32{
		uint32(args.NXC), uint32(args.NYC), uint32(args.NZC), 0,
		uint32(args.NXF), uint32(args.NYF), uint32(args.NZF), 0,
	}
	bufferParams := b.createUniformBuffer(u32Bytes(params))
	defer bufferParams.Release()

	name, code := injectionShader(block.X, block.Y, block.Z)
	pipeline := b.getOrCreatePipeline(name, code)
	//nolint:gosec // G115: grid bounded by maxWorkgroupsPerDim above.
	return b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, f2c.buffer, 0, f2c.size),
		wgpu.BufferBindingEntry(1, c2f.buffer, 0, c2f.size),
		wgpu.BufferBindingEntry(2, bufferParams, 0, 32),
	}, uint32(grid.X), uint32(grid.Y), uint32(grid.Z))
}

// Prolongate launches the prolongation kernel, one invocation per coarse index.
func (b *Backend) Prolongate(args device.TransferArgs, coarse, fine device.ValueBuffer) error {
	xc, err := b.valueBuffer(coarse)
	if err != nil {
		return fmt.Errorf("webgpu: prolongation coarse: %w", err)
	}
	xf, err := b.valueBuffer(fine)
	if err != nil {
		return fmt.Errorf("webgpu: prolongation fine: %w", err)
	}
	if xc.n < args.N {
		return fmt.Errorf("webgpu: prolongation coarse length %d < %d: %w", xc.n, args.N, device.ErrSize)
	}
	name, code := prolongationShader(b.workgroupSize())
	return b.runTransfer("prolongation", name, code, args, xc, xf)
}

// Restrict launches the restriction kernel, one invocation per coarse index.
func (b *Backend) Restrict(args device.TransferArgs, rf, axf, coarse device.ValueBuffer) error {
	r, err := b.valueBuffer(rf)
	if err != nil {
		return fmt.Errorf("webgpu: restriction rf: %w", err)
	}
	ax, err := b.valueBuffer(axf)
	if err != nil {
		return fmt.Errorf("webgpu: restriction axf: %w", err)
	}
	rc, err := b.valueBuffer(coarse)
	if err != nil {
		return fmt.Errorf("webgpu: restriction coarse: %w", err)
	}
	if rc.n < args.N {
		return fmt.Errorf("webgpu: restriction coarse length %d < %d: %w", rc.n, args.N, device.ErrSize)
	}
	name, code := restrictionShader(b.workgroupSize())
	return b.runTransfer("restriction", name, code, args, r, ax, rc)
}

func (b *Backend) workgroupSize() int {
	return min(b.launch.BlockSize, maxWorkgroupSize)
}

// runTransfer binds the shared transfer prelude plus the kernel's value
// buffers (bindings 4 and up) and dispatches enough workgroups to cover args.N.
func (b *Backend) runTransfer(op, name, code string, args device.TransferArgs, values ...*gpuValueBuffer) error {
	f2c, err := b.indexBuffer(args.F2C)
	if err != nil {
		return fmt.Errorf("webgpu: %s f2c: %w", op, err)
	}
	if f2c.n < args.N {
		return fmt.Errorf("webgpu: %s f2c length %d < %d: %w", op, f2c.n, args.N, device.ErrSize)
	}
	if args.N == 0 {
		return nil
	}

	permF, permFSize, usePermF, err := b.permutation(args.PermFine)
	if err != nil {
		return fmt.Errorf("webgpu: %s fine permutation: %w", op, err)
	}
	permC, permCSize, usePermC, err := b.permutation(args.PermCoarse)
	if err != nil {
		return fmt.Errorf("webgpu: %s coarse permutation: %w", op, err)
	}

	wg := b.workgroupSize()
	groups := parallel.Cover(args.N, wg)
	x, y := groups, 1
	if groups > maxWorkgroupsPerDim {
		x = maxWorkgroupsPerDim
		y = parallel.Cover(groups, maxWorkgroupsPerDim)
	}

	//nolint:gosec // G115: N fits int32 by construction of the index maps.
	params := []uint32{uint32(args.N), usePermF, usePermC, uint32(x * wg)}
	bufferParams := b.createUniformBuffer(u32Bytes(params))
	defer bufferParams.Release()

	entries := []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferParams, 0, 16),
		wgpu.BufferBindingEntry(1, f2c.buffer, 0, f2c.size),
		wgpu.BufferBindingEntry(2, permF, 0, permFSize),
		wgpu.BufferBindingEntry(3, permC, 0, permCSize),
	}
	for i, v := range values {
		//nolint:gosec // G115: small binding index.
		entries = append(entries, wgpu.BufferBindingEntry(uint32(4+i), v.buffer, 0, v.size))
	}

	pipeline := b.getOrCreatePipeline(name, code)
	//nolint:gosec // G115: dispatch extents bounded above.
	return b.dispatch(pipeline, entries, uint32(x), uint32(y), 1)
}

func (b *Backend) permutation(buf device.IndexBuffer) (*wgpu.Buffer, uint64, uint32, error) {
	if buf == nil {
		return b.identity, 4, 0, nil
	}
	ib, err := b.indexBuffer(buf)
	if err != nil {
		return nil, 0, 0, err
	}
	return ib.buffer, ib.size, 1, nil
}

func u32Bytes(vals []uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	return out
}
