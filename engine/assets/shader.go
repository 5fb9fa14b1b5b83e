package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// shaderMetaFile is the on-disk reflection format emitted by the shader
// compilation step, one file per program.
type shaderMetaFile struct {
	Stages []shaderStageMeta `json:"stages"`
}

type shaderStageMeta struct {
	Stage    string              `json:"stage"`
	Inputs   []shaderInputMeta   `json:"inputs,omitempty"`
	Bindings []shaderBindingMeta `json:"bindings"`
	Types    []shaderTypeMeta    `json:"types,omitempty"`
}

type shaderInputMeta struct {
	Name     string `json:"name"`
	Location uint32 `json:"location"`
	Type     string `json:"type"`
}

type shaderBindingMeta struct {
	Name      string  `json:"name"`
	Set       uint32  `json:"set"`
	Binding   uint32  `json:"binding"`
	Kind      string  `json:"kind"`
	BlockSize uint32  `json:"block_size,omitempty"`
	TypeIndex *uint32 `json:"type_index,omitempty"`
}

type shaderTypeMeta struct {
	Members []shaderMemberMeta `json:"members"`
}

type shaderMemberMeta struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Offset       uint32  `json:"offset"`
	ElementCount uint32  `json:"element_count,omitempty"`
	TypeIndex    *uint32 `json:"type_index,omitempty"`
}

func parseStage(s string) (device.StageFlags, error) {
	switch s {
	case "vertex":
		return device.StageVertex, nil
	case "fragment":
		return device.StageFragment, nil
	case "compute":
		return device.StageCompute, nil
	}
	return 0, fmt.Errorf("assets: unknown shader stage %q", s)
}

func parseKind(s string) (device.BindingKind, error) {
	switch s {
	case "uniform_buffer":
		return device.BindingUniformBuffer, nil
	case "texture":
		return device.BindingTexture, nil
	case "storage_buffer":
		return device.BindingStorageBuffer, nil
	}
	return device.BindingNone, fmt.Errorf("assets: unknown binding kind %q", s)
}

func parseDataType(s string) (device.DataType, error) {
	switch s {
	case "float":
		return device.TypeFloat, nil
	case "vec2":
		return device.TypeVec2, nil
	case "vec3":
		return device.TypeVec3, nil
	case "vec4":
		return device.TypeVec4, nil
	case "mat4":
		return device.TypeMat4, nil
	case "int":
		return device.TypeInt, nil
	case "sampler2D":
		return device.TypeSampler2D, nil
	case "samplerCube":
		return device.TypeSamplerCube, nil
	case "struct":
		return device.TypeStruct, nil
	}
	return 0, fmt.Errorf("assets: unknown data type %q", s)
}

func typeIndexOf(idx *uint32) uint32 {
	if idx == nil {
		return device.NoType
	}
	return *idx
}

// ParseShaderMeta decodes reflection JSON into the runtime representation,
// filling in the name hashes lookups run on.
func ParseShaderMeta(data []byte) (device.ShaderMeta, error) {
	var file shaderMetaFile
	if err := json.Unmarshal(data, &file); err != nil {
		return device.ShaderMeta{}, fmt.Errorf("assets: parse shader meta: %w", err)
	}

	meta := device.ShaderMeta{}
	for _, stage := range file.Stages {
		stageFlag, err := parseStage(stage.Stage)
		if err != nil {
			return device.ShaderMeta{}, err
		}
		out := device.StageMeta{Stage: stageFlag}

		for _, input := range stage.Inputs {
			inputType, err := parseDataType(input.Type)
			if err != nil {
				return device.ShaderMeta{}, err
			}
			out.Inputs = append(out.Inputs, device.VertexInput{
				Name:     input.Name,
				NameHash: device.HashName(input.Name),
				Location: input.Location,
				Type:     inputType,
			})
		}

		for _, b := range stage.Bindings {
			kind, err := parseKind(b.Kind)
			if err != nil {
				return device.ShaderMeta{}, err
			}
			out.Bindings = append(out.Bindings, device.ResourceBinding{
				Name:      b.Name,
				NameHash:  device.HashName(b.Name),
				Set:       b.Set,
				Binding:   b.Binding,
				Kind:      kind,
				BlockSize: b.BlockSize,
				TypeIndex: typeIndexOf(b.TypeIndex),
			})
		}

		for _, t := range stage.Types {
			typeInfo := device.TypeInfo{}
			for _, m := range t.Members {
				memberType, err := parseDataType(m.Type)
				if err != nil {
					return device.ShaderMeta{}, err
				}
				elementCount := m.ElementCount
				if elementCount == 0 {
					elementCount = 1
				}
				typeInfo.Members = append(typeInfo.Members, device.Member{
					Name:         m.Name,
					NameHash:     device.HashName(m.Name),
					Type:         memberType,
					TypeIndex:    typeIndexOf(m.TypeIndex),
					ElementCount: elementCount,
					Offset:       m.Offset,
				})
			}
			out.Types = append(out.Types, typeInfo)
		}

		// Range-check the type references while the stage is still in one
		// piece; the file is external input and may be hand-edited.
		for _, b := range out.Bindings {
			if b.TypeIndex != device.NoType && b.TypeIndex >= uint32(len(out.Types)) {
				return device.ShaderMeta{}, fmt.Errorf("assets: binding %q references type %d but stage %q carries %d types", b.Name, b.TypeIndex, stage.Stage, len(out.Types))
			}
		}

		meta.Stages = append(meta.Stages, out)
	}
	return meta, nil
}

// ShaderProgram is a loaded program: compiled stage binaries plus the
// merged reflection.
type ShaderProgram struct {
	Name       string
	VertexCode []byte
	PixelCode  []byte
	Meta       device.ShaderMeta
}

// LoadShaderProgram reads <name>.vert.spv, <name>.frag.spv and
// <name>.meta.json from dir.
func LoadShaderProgram(dir, name string) (*ShaderProgram, error) {
	vertexCode, err := os.ReadFile(filepath.Join(dir, name+".vert.spv"))
	if err != nil {
		core.LogError("failed to read vertex shader for %s", name)
		return nil, err
	}
	pixelCode, err := os.ReadFile(filepath.Join(dir, name+".frag.spv"))
	if err != nil {
		core.LogError("failed to read fragment shader for %s", name)
		return nil, err
	}
	metaData, err := os.ReadFile(filepath.Join(dir, name+".meta.json"))
	if err != nil {
		core.LogError("failed to read shader meta for %s", name)
		return nil, err
	}
	meta, err := ParseShaderMeta(metaData)
	if err != nil {
		return nil, err
	}

	return &ShaderProgram{
		Name:       name,
		VertexCode: vertexCode,
		PixelCode:  pixelCode,
		Meta:       meta,
	}, nil
}
