package math

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

type Mat4 [4][4]float32

func Mat4Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func Mat4Zero() Mat4 {
	return Mat4{
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}
}

func (m Mat4) Mul(other Mat4) Mat4 {
	result := Mat4Zero()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				result[i][j] += m[i][k] * other[k][j]
			}
		}
	}
	return result
}

// MulVec3 transforms a point. Affine matrices keep W at 1.
func (m Mat4) MulVec3(v Vec3) Vec3 {
	r := v.ToVec4(1).MulMat(m)
	if p, ok := r.PerspectiveDivide(); ok {
		return p
	}
	return Vec3{X: r.X, Y: r.Y, Z: r.Z}
}

func Mat4Translation(translation Vec3) Mat4 {
	m := Mat4Identity()
	m[3][0] = translation.X
	m[3][1] = translation.Y
	m[3][2] = translation.Z
	return m
}

func Mat4Scale(scale Vec3) Mat4 {
	m := Mat4Identity()
	m[0][0] = scale.X
	m[1][1] = scale.Y
	m[2][2] = scale.Z
	return m
}

func Mat4RotationZ(angle float32) Mat4 {
	c := math32.Cos(angle)
	s := math32.Sin(angle)
	return Mat4{
		{c, s, 0, 0},
		{-s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func Mat4LookAt(eye, target, up Vec3) Mat4 {
	zAxis := eye.Sub(target).Normalize()
	xAxis := up.Cross(zAxis).Normalize()
	yAxis := zAxis.Cross(xAxis)

	return Mat4{
		{xAxis.X, yAxis.X, zAxis.X, 0},
		{xAxis.Y, yAxis.Y, zAxis.Y, 0},
		{xAxis.Z, yAxis.Z, zAxis.Z, 0},
		{-xAxis.Dot(eye), -yAxis.Dot(eye), -zAxis.Dot(eye), 1},
	}
}

// Mat4PerspectiveZO builds a right-handed projection for clip spaces with a
// zero-to-one depth range and a downward Y axis (Vulkan, Direct3D after the
// vertical flip the presenting side does not apply).
func Mat4PerspectiveZO(fovY, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovY/2)

	m := Mat4Zero()
	m[0][0] = f / aspect
	m[1][1] = -f
	m[2][2] = far / (near - far)
	m[2][3] = -1
	m[3][2] = near * far / (near - far)
	return m
}

// AppendBytes appends the matrix in memory order (row after row) as
// little-endian float32s. Shaders reading it as a column-major mat4 see the
// transpose, which matches the row-vector convention used here.
func (m Mat4) AppendBytes(dst []byte) []byte {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(m[i][j]))
		}
	}
	return dst
}
