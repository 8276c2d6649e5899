//go:build windows

package webgpu

import "fmt"

// WGSL compute shaders for the grid-transfer kernels.
// Workgroup shapes are substituted at compile time so launch parameters can be
// tuned without touching the kernels.

// maxWorkgroupSize is the WebGPU default limit on invocations per workgroup.
const maxWorkgroupSize = 256

// maxWorkgroupsPerDim is the WebGPU default limit on dispatch size per dimension.
const maxWorkgroupsPerDim = 65535

// injectionShaderTemplate writes both index maps for one coarse cell per invocation.
const injectionShaderTemplate = `
@group(0) @binding(0) var<storage, read_write> f2c: array<i32>;
@group(0) @binding(1) var<storage, read_write> c2f: array<i32>;

struct Params {
    nxc: u32,
    nyc: u32,
    nzc: u32,
    _pad0: u32,
    nxf: u32,
    nyf: u32,
    nzf: u32,
    _pad1: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(%d, %d, %d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let ixc = gid.x;
    let iyc = gid.y;
    let izc = gid.z;
    if (izc >= params.nzc || iyc >= params.nyc || ixc >= params.nxc) {
        return;
    }

    let ixf = ixc << 1u;
    let iyf = iyc << 1u;
    let izf = izc << 1u;

    let coarse = izc * params.nxc * params.nyc + iyc * params.nxc + ixc;
    let fine = izf * params.nxf * params.nyf + iyf * params.nxf + ixf;

    f2c[coarse] = i32(fine);
    c2f[fine] = i32(coarse);
}
`

// transferPrelude declares the bindings shared by prolongation and restriction.
const transferPrelude = `
struct Params {
    size: u32,
    perm_fine: u32,
    perm_coarse: u32,
    row_stride: u32,
}
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> f2c: array<i32>;
@group(0) @binding(2) var<storage, read> perm_f: array<i32>;
@group(0) @binding(3) var<storage, read> perm_c: array<i32>;

fn fine_slot(i: u32) -> u32 {
    let f = u32(f2c[i]);
    if (params.perm_fine != 0u) {
        return u32(perm_f[f]);
    }
    return f;
}

fn coarse_slot(i: u32) -> u32 {
    if (params.perm_coarse != 0u) {
        return u32(perm_c[i]);
    }
    return i;
}
`

// prolongationShaderTemplate adds one coarse correction into its fine slot.
const prolongationShaderTemplate = transferPrelude + `
@group(0) @binding(4) var<storage, read> coarse: array<f32>;
@group(0) @binding(5) var<storage, read_write> fine: array<f32>;

@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.y * params.row_stride + gid.x;
    if (idx >= params.size) {
        return;
    }
    let f = fine_slot(idx);
    fine[f] = fine[f] + coarse[coarse_slot(idx)];
}
`

// restrictionShaderTemplate injects the fine residual into one coarse slot.
const restrictionShaderTemplate = transferPrelude + `
@group(0) @binding(4) var<storage, read> rf: array<f32>;
@group(0) @binding(5) var<storage, read> axf: array<f32>;
@group(0) @binding(6) var<storage, read_write> rc: array<f32>;

@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.y * params.row_stride + gid.x;
    if (idx >= params.size) {
        return;
    }
    let f = fine_slot(idx);
    rc[coarse_slot(idx)] = rf[f] - axf[f];
}
`

func injectionShader(x, y, z int) (name, code string) {
	return fmt.Sprintf("injection_%dx%dx%d", x, y, z), fmt.Sprintf(injectionShaderTemplate, x, y, z)
}

func prolongationShader(wg int) (name, code string) {
	return fmt.Sprintf("prolongation_%d", wg), fmt.Sprintf(prolongationShaderTemplate, wg)
}

func restrictionShader(wg int) (name, code string) {
	return fmt.Sprintf("restriction_%d", wg), fmt.Sprintf(restrictionShaderTemplate, wg)
}
