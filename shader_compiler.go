package astral

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderCompilerInput is one stage compilation request. Source is the
// fully composed listing: compiler prelude, declaration common
// source, pass common source, stage body.
type ShaderCompilerInput struct {
	Name       string
	Pass       string
	Stage      ShaderStageKind
	Source     string
	EntryPoint string
}

// ShaderCompiler turns composed stage source into a backend module.
// Prelude is prepended to every stage before the shader's own source;
// toolchains that consume the bindless convention return
// BindlessPreamble here.
type ShaderCompiler interface {
	Prelude() string
	Compile(input ShaderCompilerInput) (*wgpu.ShaderModule, error)
}

// WGSLCompiler hands composed source directly to the wgpu driver as
// WGSL. Its prelude is empty: core WGSL has no unbounded descriptor
// arrays, so WGSL modules bind their tables explicitly and the HLSL
// bindless prelude does not apply.
type WGSLCompiler struct {
	Device *wgpu.Device
}

func (c WGSLCompiler) Prelude() string {
	return ""
}

func (c WGSLCompiler) Compile(input ShaderCompilerInput) (*wgpu.ShaderModule, error) {
	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          fmt.Sprintf("%s/%s/%s", input.Name, input.Pass, input.Stage),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: input.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s stage of shader %q: %w", input.Stage, input.Name, err)
	}
	return module, nil
}
