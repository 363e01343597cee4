package models

import (
	"io"
	"math"
	"os"

	"github.com/mokiat/go-data-front/decoder/obj"
	"github.com/pkg/errors"
	"github.com/xlab/linmath"
)

// LoadOBJFile reads a Wavefront OBJ model from path. See LoadOBJ.
func LoadOBJFile(path string) (Mesh, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "failed to open model file")
	}
	defer fh.Close()

	return LoadOBJ(fh)
}

// LoadOBJ decodes a Wavefront OBJ model. Every face of every object is
// triangulated as a fan. Vertices sharing position and texture coordinates are
// stored once. Vertex colors are white since OBJ does not carry them.
func LoadOBJ(r io.Reader) (Mesh, error) {
	model, err := obj.NewDecoder(obj.DefaultLimits()).Decode(r)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "failed to decode model")
	}

	var (
		mesh   Mesh
		unique = make(map[Vertex]uint16)
	)

	addVertex := func(vertexIndex, texCoordIndex int) (uint16, error) {
		if vertexIndex < 0 || vertexIndex >= len(model.Vertices) {
			return 0, errors.Errorf("face references missing vertex %d", vertexIndex)
		}
		pos := model.Vertices[vertexIndex]

		vertex := Vertex{
			Pos:   linmath.Vec3{float32(pos.X), float32(pos.Y), float32(pos.Z)},
			Color: linmath.Vec3{1, 1, 1},
		}
		if texCoordIndex >= 0 && texCoordIndex < len(model.TexCoords) {
			uv := model.TexCoords[texCoordIndex]
			vertex.TexCoord = linmath.Vec2{float32(uv.U), 1 - float32(uv.V)}
		}

		if index, ok := unique[vertex]; ok {
			return index, nil
		}
		if len(mesh.Vertices) > math.MaxUint16 {
			return 0, errors.Errorf("model has more than %d unique vertices", math.MaxUint16+1)
		}

		index := uint16(len(mesh.Vertices))
		unique[vertex] = index
		mesh.Vertices = append(mesh.Vertices, vertex)
		return index, nil
	}

	for _, object := range model.Objects {
		for _, objMesh := range object.Meshes {
			for _, face := range objMesh.Faces {
				if len(face.References) < 3 {
					continue
				}

				corners := make([]uint16, 0, len(face.References))
				for _, ref := range face.References {
					index, err := addVertex(int(ref.VertexIndex), int(ref.TexCoordIndex))
					if err != nil {
						return Mesh{}, err
					}
					corners = append(corners, index)
				}

				for i := 1; i+1 < len(corners); i++ {
					mesh.Indices = append(mesh.Indices, corners[0], corners[i], corners[i+1])
				}
			}
		}
	}

	if len(mesh.Indices) == 0 {
		return Mesh{}, errors.New("model has no faces")
	}

	return mesh, nil
}
