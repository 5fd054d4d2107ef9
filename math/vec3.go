package math

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

type Vec3 struct {
	X, Y, Z float32
}

var (
	Vec3Zero = Vec3{0, 0, 0}
	Vec3One  = Vec3{1, 1, 1}
	Vec3Up   = Vec3{0, 1, 0}
)

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vec3) Mul(scalar float32) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) Normalize() Vec3 {
	length := v.Length()
	if length > 0 {
		return v.Mul(1.0 / length)
	}
	return v
}

// Min is the component-wise minimum.
func (v Vec3) Min(other Vec3) Vec3 {
	return Vec3{X: min(v.X, other.X), Y: min(v.Y, other.Y), Z: min(v.Z, other.Z)}
}

// Max is the component-wise maximum.
func (v Vec3) Max(other Vec3) Vec3 {
	return Vec3{X: max(v.X, other.X), Y: max(v.Y, other.Y), Z: max(v.Z, other.Z)}
}

func (v Vec3) ToVec4(w float32) Vec4 {
	return Vec4{X: v.X, Y: v.Y, Z: v.Z, W: w}
}

// AppendBytes appends X, Y, Z as little-endian float32s, the layout of a
// vec3 vertex attribute.
func (v Vec3) AppendBytes(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.X))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Y))
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Z))
}
