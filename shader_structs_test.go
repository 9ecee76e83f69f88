package astral

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStructs(t *testing.T) {
	src := `
struct DrawConstants
{
    uint vertex_buffer;
    float time;
};

float4 shade() { return float4(1, 1, 1, 1); }

struct Vertex { float2 position; uint color; }
`
	decls := extractStructs(src)
	require.Len(t, decls, 2)
	assert.Equal(t, "DrawConstants", decls[0].name)
	assert.Equal(t, "uint vertex_buffer; float time;", decls[0].body)
	assert.Equal(t, "Vertex", decls[1].name)
	assert.Equal(t, "float2 position; uint color;", decls[1].body)
}

func TestExtractStructs_WordBoundary(t *testing.T) {
	// "construct" and "structure" must not read as struct keywords.
	src := `void construct() { } int structured = 0; struct Real { uint a; };`
	decls := extractStructs(src)
	require.Len(t, decls, 1)
	assert.Equal(t, "Real", decls[0].name)
}

func TestHoistSharedStructs_identicalCopies(t *testing.T) {
	pass := &ShaderPass{
		Stages: []ShaderStage{
			{Kind: StageVertex, Source: `
struct DrawConstants { uint vertex_buffer; float time; };
void vs_main() { }
`},
			{Kind: StageFragment, Source: `
struct DrawConstants
{
    uint vertex_buffer;
    float time;
};
void fs_main() { }
`},
		},
	}

	require.NoError(t, HoistSharedStructs(pass))

	assert.Contains(t, pass.CommonSource, "struct DrawConstants")
	for _, stage := range pass.Stages {
		assert.NotContains(t, stage.Source, "struct DrawConstants", "stage %s", stage.Kind)
	}
	// Surrounding code survives the strip.
	assert.Contains(t, pass.Stages[0].Source, "vs_main")
	assert.Contains(t, pass.Stages[1].Source, "fs_main")
	// One hoisted copy, not two.
	assert.Equal(t, 1, strings.Count(pass.CommonSource, "struct DrawConstants"))
}

func TestHoistSharedStructs_divergentCopies(t *testing.T) {
	pass := &ShaderPass{
		Name: "Shade",
		Stages: []ShaderStage{
			{Kind: StageVertex, Source: `struct DrawConstants { uint vertex_buffer; float time; };`},
			{Kind: StageFragment, Source: `struct DrawConstants { uint vertex_buffer; uint padding; float time; };`},
		},
	}

	err := HoistSharedStructs(pass)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DrawConstants")
	assert.Contains(t, err.Error(), "diverges")
}

func TestHoistSharedStructs_singleStageStructStays(t *testing.T) {
	pass := &ShaderPass{
		Stages: []ShaderStage{
			{Kind: StageVertex, Source: `struct VsOnly { float4 position; }; void vs_main() { }`},
			{Kind: StageFragment, Source: `void fs_main() { }`},
		},
	}

	require.NoError(t, HoistSharedStructs(pass))
	assert.Empty(t, pass.CommonSource)
	assert.Contains(t, pass.Stages[0].Source, "struct VsOnly")
}

func TestHoistSharedStructs_whitespaceOnlyDifference(t *testing.T) {
	pass := &ShaderPass{
		Stages: []ShaderStage{
			{Kind: StageVertex, Source: "struct S { uint a; float b; };"},
			{Kind: StageFragment, Source: "struct S\n{\n    uint a;\n    float b;\n};"},
		},
	}
	require.NoError(t, HoistSharedStructs(pass))
	assert.Contains(t, pass.CommonSource, "struct S")
}

func TestParseShaderDeclaration_HoistsAcrossStages(t *testing.T) {
	src := `
shader "Hoisted"
{
    vertex
    {
        struct DrawConstants { uint vb; float t; };
        void vs_main() { }
    }
    fragment
    {
        struct DrawConstants { uint vb; float t; };
        void fs_main() { }
    }
}
`
	decl, err := ParseShaderDeclaration(src)
	require.NoError(t, err)
	pass := decl.Pass("")
	assert.Contains(t, pass.CommonSource, "struct DrawConstants")
	assert.NotContains(t, pass.stage(StageVertex).Source, "struct DrawConstants")
	assert.NotContains(t, pass.stage(StageFragment).Source, "struct DrawConstants")
}

func TestParseShaderDeclaration_DivergenceFailsLoad(t *testing.T) {
	src := `
shader "Divergent"
{
    vertex
    {
        struct DrawConstants { uint vb; float t; };
        void vs_main() { }
    }
    fragment
    {
        struct DrawConstants { float t; uint vb; };
        void fs_main() { }
    }
}
`
	_, err := ParseShaderDeclaration(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverges")
}
