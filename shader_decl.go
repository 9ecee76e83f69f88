package astral

import (
	"fmt"
	"strings"
	"unicode"
)

// ShaderStageKind identifies one compilation unit inside a pass.
type ShaderStageKind uint8

const (
	StageVertex ShaderStageKind = iota
	StageFragment
	StageCompute
)

func (k ShaderStageKind) String() string {
	switch k {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return fmt.Sprintf("ShaderStageKind(%d)", uint8(k))
}

// ParameterType is the declared type of one entry in a shader's
// parameters block. Resource types (Texture2D, Sampler, buffers) take
// four bytes in the constant record: they cross the boundary as
// bindless handles, not as views.
type ParameterType uint8

const (
	ParamUint ParameterType = iota
	ParamUint64
	ParamFloat
	ParamFloat2
	ParamFloat3
	ParamFloat4
	ParamFloat4x4
	ParamTexture2D
	ParamSampler
	ParamByteAddressBuffer
	ParamRWByteAddressBuffer
)

var parameterTypeNames = map[string]ParameterType{
	"uint":                ParamUint,
	"uint64_t":            ParamUint64,
	"float":               ParamFloat,
	"float2":              ParamFloat2,
	"float3":              ParamFloat3,
	"float4":              ParamFloat4,
	"float4x4":            ParamFloat4x4,
	"Texture2D":           ParamTexture2D,
	"Sampler":             ParamSampler,
	"ByteAddressBuffer":   ParamByteAddressBuffer,
	"RWByteAddressBuffer": ParamRWByteAddressBuffer,
}

func ParseParameterType(s string) (ParameterType, error) {
	if t, ok := parameterTypeNames[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown parameter type %q", s)
}

func (t ParameterType) String() string {
	for name, ty := range parameterTypeNames {
		if ty == t {
			return name
		}
	}
	return fmt.Sprintf("ParameterType(%d)", uint8(t))
}

// HLSL is the type as it appears in the generated constant record.
// Resource parameters become uint handles.
func (t ParameterType) HLSL() string {
	switch t {
	case ParamTexture2D, ParamSampler, ParamByteAddressBuffer, ParamRWByteAddressBuffer:
		return "uint"
	case ParamUint64:
		return "uint64_t"
	default:
		return t.String()
	}
}

// ByteSize is the parameter's footprint in the constant record.
func (t ParameterType) ByteSize() (uintptr, error) {
	switch t {
	case ParamUint, ParamFloat, ParamTexture2D, ParamSampler,
		ParamByteAddressBuffer, ParamRWByteAddressBuffer:
		return 4, nil
	case ParamUint64, ParamFloat2:
		return 8, nil
	case ParamFloat3:
		return 12, nil
	case ParamFloat4:
		return 16, nil
	case ParamFloat4x4:
		return 64, nil
	}
	return 0, fmt.Errorf("parameter type %s has no constant record size", t)
}

// ShaderParameter is one named entry of a parameters block.
type ShaderParameter struct {
	Name string
	Type ParameterType
}

// ShaderStage is one compilation unit. Source is the stage's code
// verbatim, without the surrounding block braces.
type ShaderStage struct {
	Kind   ShaderStageKind
	Source string
}

// PassKind distinguishes graphics passes (vertex+fragment) from
// compute passes.
type PassKind uint8

const (
	PassGraphics PassKind = iota
	PassCompute
)

// ShaderPass groups the stages compiled together, plus source shared
// by all of them.
type ShaderPass struct {
	Name         string
	Kind         PassKind
	CommonSource string
	Stages       []ShaderStage
}

func (p *ShaderPass) stage(kind ShaderStageKind) *ShaderStage {
	for i := range p.Stages {
		if p.Stages[i].Kind == kind {
			return &p.Stages[i]
		}
	}
	return nil
}

// ShaderDeclaration is the parsed form of one .zeshader module:
// shared source, per-pass stage sources, and the parameters feeding
// the per-draw constant record.
type ShaderDeclaration struct {
	Name         string
	CommonSource string
	Passes       []*ShaderPass
	Parameters   []ShaderParameter
}

// Pass returns the named pass, or the default (unnamed) pass for "".
func (d *ShaderDeclaration) Pass(name string) *ShaderPass {
	for _, p := range d.Passes {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// StageSource composes the full compilable source of one stage:
// compiler prelude, declaration common, pass common, then the stage
// body.
func (d *ShaderDeclaration) StageSource(prelude string, pass *ShaderPass, stage *ShaderStage) string {
	var b strings.Builder
	b.WriteString(prelude)
	b.WriteString(d.CommonSource)
	b.WriteString(pass.CommonSource)
	b.WriteString(stage.Source)
	return b.String()
}

type declParser struct {
	src  []rune
	pos  int
	line int
}

func (p *declParser) errf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

func (p *declParser) next() (rune, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	ch := p.src[p.pos]
	p.pos++
	if ch == '\n' {
		p.line++
	}
	return ch, true
}

func (p *declParser) peek() (rune, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *declParser) skipSpace() {
	for {
		ch, ok := p.peek()
		if !ok || !unicode.IsSpace(ch) {
			return
		}
		p.next()
	}
}

// expect consumes whitespace and then the given rune.
func (p *declParser) expect(want rune) error {
	p.skipSpace()
	ch, ok := p.next()
	if !ok {
		return p.errf("expected %q, found end of input", want)
	}
	if ch != want {
		return p.errf("expected %q, found %q", want, ch)
	}
	return nil
}

func (p *declParser) readWord() string {
	var b strings.Builder
	for {
		ch, ok := p.peek()
		if !ok || (!unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '_') {
			break
		}
		b.WriteRune(ch)
		p.next()
	}
	return b.String()
}

func (p *declParser) readQuoted() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		ch, ok := p.next()
		if !ok {
			return "", p.errf("unterminated string")
		}
		switch ch {
		case '"':
			return b.String(), nil
		case '\n':
			return "", p.errf("newline inside quoted name")
		default:
			b.WriteRune(ch)
		}
	}
}

// readBlock consumes a balanced { ... } block and returns its content
// without the outer braces.
func (p *declParser) readBlock() (string, error) {
	if err := p.expect('{'); err != nil {
		return "", err
	}
	var b strings.Builder
	depth := 1
	for {
		ch, ok := p.next()
		if !ok {
			return "", p.errf("unterminated block")
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b.String(), nil
			}
		}
		b.WriteRune(ch)
	}
}

// ParseShaderDeclaration parses a .zeshader module source.
func ParseShaderDeclaration(src string) (*ShaderDeclaration, error) {
	p := &declParser{src: []rune(src), line: 1}

	p.skipSpace()
	if word := p.readWord(); word != "shader" {
		return nil, p.errf("expected 'shader \"Name\"', found %q", word)
	}
	name, err := p.readQuoted()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, p.errf("shader name is empty")
	}
	decl := &ShaderDeclaration{Name: name}
	if err := p.expect('{'); err != nil {
		return nil, err
	}

	// The implicit pass collects vertex/fragment blocks declared at
	// shader level. Dropped at the end when nothing used it.
	defaultPass := &ShaderPass{}
	decl.Passes = append(decl.Passes, defaultPass)

	if err := p.parsePassBody(decl, defaultPass, true); err != nil {
		return nil, err
	}

	if len(defaultPass.Stages) == 0 && defaultPass.CommonSource == "" {
		decl.Passes = decl.Passes[1:]
	}
	if len(decl.Passes) == 0 {
		return nil, fmt.Errorf("shader %q declares no passes", decl.Name)
	}
	for _, pass := range decl.Passes {
		if err := validatePass(decl.Name, pass); err != nil {
			return nil, err
		}
	}
	return decl, nil
}

// parsePassBody consumes the inside of a shader or pass block up to
// its closing brace. topLevel additionally allows pass and parameters
// blocks, and accumulates free source into the declaration rather
// than the pass.
func (p *declParser) parsePassBody(decl *ShaderDeclaration, pass *ShaderPass, topLevel bool) error {
	appendSource := func(s string) {
		if topLevel {
			decl.CommonSource += s
		} else {
			pass.CommonSource += s
		}
	}

	for {
		ch, ok := p.peek()
		if !ok {
			return p.errf("unterminated %s block", map[bool]string{true: "shader", false: "pass"}[topLevel])
		}

		switch {
		case ch == '}':
			p.next()
			return nil

		case ch == '{':
			// Bare brace: verbatim shared source block.
			body, err := p.readBlock()
			if err != nil {
				return err
			}
			appendSource(body)

		case unicode.IsLetter(ch) || ch == '_':
			word := p.readWord()
			switch word {
			case "hlsl":
				body, err := p.readBlock()
				if err != nil {
					return err
				}
				appendSource(body)

			case "vertex", "fragment":
				kind := StageVertex
				if word == "fragment" {
					kind = StageFragment
				}
				if pass.Kind == PassCompute {
					return p.errf("cannot add a %s block to a compute pass", word)
				}
				if pass.stage(kind) != nil {
					return p.errf("duplicate %s block in pass %q", word, pass.Name)
				}
				body, err := p.readBlock()
				if err != nil {
					return err
				}
				pass.Stages = append(pass.Stages, ShaderStage{Kind: kind, Source: body})

			case "compute":
				if len(pass.Stages) != 0 {
					return p.errf("compute block cannot share a pass with other stages")
				}
				body, err := p.readBlock()
				if err != nil {
					return err
				}
				pass.Kind = PassCompute
				pass.Stages = append(pass.Stages, ShaderStage{Kind: StageCompute, Source: body})

			case "pass":
				if !topLevel {
					return p.errf("nested pass blocks are not allowed")
				}
				name, err := p.readQuoted()
				if err != nil {
					return err
				}
				if decl.Pass(name) != nil {
					return p.errf("duplicate pass %q", name)
				}
				if err := p.expect('{'); err != nil {
					return err
				}
				newPass := &ShaderPass{Name: name}
				decl.Passes = append(decl.Passes, newPass)
				if err := p.parsePassBody(decl, newPass, false); err != nil {
					return err
				}

			case "parameters":
				if !topLevel {
					return p.errf("parameters blocks belong at shader level")
				}
				params, err := p.parseParameters()
				if err != nil {
					return err
				}
				decl.Parameters = append(decl.Parameters, params...)

			default:
				// Not a keyword: free shader source.
				appendSource(word)
			}

		default:
			p.next()
			appendSource(string(ch))
		}
	}
}

// parseParameters consumes a parameters block of `name : type;`
// entries.
func (p *declParser) parseParameters() ([]ShaderParameter, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	var params []ShaderParameter
	for {
		p.skipSpace()
		ch, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated parameters block")
		}
		if ch == '}' {
			p.next()
			return params, nil
		}
		name := p.readWord()
		if name == "" {
			return nil, p.errf("expected parameter name, found %q", ch)
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		p.skipSpace()
		typeName := p.readWord()
		ty, err := ParseParameterType(typeName)
		if err != nil {
			return nil, p.errf("parameter %s: %v", name, err)
		}
		if err := p.expect(';'); err != nil {
			return nil, err
		}
		params = append(params, ShaderParameter{Name: name, Type: ty})
	}
}

func validatePass(shaderName string, pass *ShaderPass) error {
	if len(pass.Stages) == 0 {
		return fmt.Errorf("shader %q pass %q declares no stages", shaderName, pass.Name)
	}
	if pass.Kind == PassGraphics {
		if pass.stage(StageVertex) == nil || pass.stage(StageFragment) == nil {
			return fmt.Errorf("shader %q pass %q needs both vertex and fragment stages", shaderName, pass.Name)
		}
	}
	return HoistSharedStructs(pass)
}
