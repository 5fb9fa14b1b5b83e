package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/emberengine/ember/engine/assets"
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/mathx"
	"github.com/emberengine/ember/engine/renderer/backend"
	"github.com/emberengine/ember/engine/renderer/device"
)

// demoScene draws a spinning textured quad. It exists to exercise the whole
// renderer surface from a real window, not to be a scene graph.
type demoScene struct {
	programName  string
	program      *backend.Program
	texture      *backend.Texture
	vertexBuffer *backend.Buffer
	indexBuffer  *backend.Buffer
	declaration  *backend.VertexDeclaration

	mvpLocation    backend.UniformLocation
	tintLocation   backend.UniformLocation
	albedoLocation backend.UniformLocation

	angle float64
}

func newDemoScene(rc *backend.Context) (*demoScene, error) {
	s := &demoScene{programName: "basic"}

	sp, err := assets.LoadShaderProgram(shaderDir, s.programName)
	if err != nil {
		return nil, err
	}
	program, err := rc.NewProgram(backend.ProgramDesc{
		VertexCode: sp.VertexCode,
		PixelCode:  sp.PixelCode,
		Meta:       sp.Meta,
	})
	if err != nil {
		return nil, err
	}
	s.program = program
	if err := s.lookupUniforms(); err != nil {
		return nil, err
	}

	s.declaration = backend.NewVertexDeclaration([]backend.VertexStream{
		{Name: "position", Type: device.TypeVec3},
		{Name: "texcoord", Type: device.TypeVec2},
	})

	vertices := quadVertices()
	s.vertexBuffer, err = rc.NewVertexBuffer(vertices)
	if err != nil {
		return nil, err
	}
	s.indexBuffer, err = rc.NewIndexBuffer(quadIndices())
	if err != nil {
		return nil, err
	}

	s.texture, err = loadSceneTexture(rc)
	if err != nil {
		return nil, err
	}

	return s, nil
}

const (
	texturePath   = "assets/textures/crate.png"
	maxTextureDim = 2048
)

// loadSceneTexture decodes the quad's albedo from disk. A missing or broken
// file falls back to a generated checkerboard so the demo still runs.
func loadSceneTexture(rc *backend.Context) (*backend.Texture, error) {
	img, err := assets.LoadImage(texturePath)
	if err != nil {
		core.LogWarn("%s unavailable, using checkerboard: %s", texturePath, err.Error())
		img = &assets.ImageData{
			Width:  checkerSize,
			Height: checkerSize,
			Format: device.FormatRGBA8,
			Pixels: checkerPixels(),
		}
	}
	if img.Width > maxTextureDim || img.Height > maxTextureDim {
		img = img.Resize(mathx.Min(img.Width, maxTextureDim), mathx.Min(img.Height, maxTextureDim))
	}

	texture, err := rc.NewTexture(img.Width, img.Height, 1, img.Format)
	if err != nil {
		return nil, err
	}
	if err := rc.UploadTexture(texture, 0, img.Pixels); err != nil {
		rc.DestroyTexture(texture)
		return nil, err
	}
	return texture, nil
}

func (s *demoScene) lookupUniforms() error {
	s.mvpLocation = s.program.UniformLocation("mvp")
	s.tintLocation = s.program.UniformLocation("tint")
	s.albedoLocation = s.program.UniformLocation("albedo")
	if s.mvpLocation == backend.InvalidUniformLocation ||
		s.tintLocation == backend.InvalidUniformLocation ||
		s.albedoLocation == backend.InvalidUniformLocation {
		return fmt.Errorf("engine: program %s is missing a required uniform", s.programName)
	}
	return nil
}

func (s *demoScene) draw(rc *backend.Context, delta float64) error {
	s.angle += delta

	rc.SetProgram(s.program)
	rc.SetUniformMat4(s.mvpLocation, rotationZ(float32(s.angle)))
	rc.SetUniformVec4(s.tintLocation, backend.Vec4{1, 1, 1, 1})
	rc.SetTexture(0, s.texture)
	rc.SetSampler(s.albedoLocation, 0)
	rc.SetVertexBuffer(s.vertexBuffer, s.declaration)
	rc.SetIndexBuffer(s.indexBuffer, false)

	return rc.DrawIndexed(6, 0)
}

// reloadProgram swaps in a freshly compiled program. The old one is destroyed
// through the deferred queue, so in-flight frames keep their pipelines alive.
func (s *demoScene) reloadProgram(rc *backend.Context, name string) error {
	if name != s.programName {
		return nil
	}
	sp, err := assets.LoadShaderProgram(shaderDir, name)
	if err != nil {
		return err
	}
	program, err := rc.NewProgram(backend.ProgramDesc{
		VertexCode: sp.VertexCode,
		PixelCode:  sp.PixelCode,
		Meta:       sp.Meta,
	})
	if err != nil {
		return err
	}

	old := s.program
	s.program = program
	if err := s.lookupUniforms(); err != nil {
		s.program = old
		rc.DestroyProgram(program)
		return err
	}
	rc.DestroyProgram(old)
	core.LogInfo("reloaded shader program %s", name)
	return nil
}

func (s *demoScene) destroy(rc *backend.Context) {
	if rc == nil {
		return
	}
	rc.DestroyTexture(s.texture)
	rc.DestroyBuffer(s.indexBuffer)
	rc.DestroyBuffer(s.vertexBuffer)
	rc.DestroyProgram(s.program)
}

func quadVertices() []byte {
	data := []float32{
		// x, y, z, u, v
		-0.5, -0.5, 0, 0, 1,
		0.5, -0.5, 0, 1, 1,
		0.5, 0.5, 0, 1, 0,
		-0.5, 0.5, 0, 0, 0,
	}
	out := make([]byte, 0, len(data)*4)
	for _, f := range data {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}

func quadIndices() []byte {
	indices := []uint16{0, 1, 2, 2, 3, 0}
	out := make([]byte, 0, len(indices)*2)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint16(out, i)
	}
	return out
}

const checkerSize = 64

func checkerPixels() []byte {
	pixels := make([]byte, checkerSize*checkerSize*4)
	for y := 0; y < checkerSize; y++ {
		for x := 0; x < checkerSize; x++ {
			i := (y*checkerSize + x) * 4
			c := byte(40)
			if (x/8+y/8)%2 == 0 {
				c = 220
			}
			pixels[i] = c
			pixels[i+1] = c
			pixels[i+2] = c
			pixels[i+3] = 255
		}
	}
	return pixels
}

func rotationZ(angle float32) backend.Mat4 {
	sin64, cos64 := math.Sincos(float64(angle))
	sin, cos := float32(sin64), float32(cos64)
	return backend.Mat4{
		cos, sin, 0, 0,
		-sin, cos, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}
