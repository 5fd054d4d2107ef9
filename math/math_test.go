package math

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestVec3Operations(t *testing.T) {
	v1 := Vec3{1, 2, 3}
	v2 := Vec3{4, 5, 6}

	// Addition
	result := v1.Add(v2)
	expected := Vec3{5, 7, 9}
	if result != expected {
		t.Errorf("Add: expected %v, got %v", expected, result)
	}

	// Subtraction
	result = v2.Sub(v1)
	expected = Vec3{3, 3, 3}
	if result != expected {
		t.Errorf("Sub: expected %v, got %v", expected, result)
	}

	// Scalar multiplication
	result = v1.Mul(2)
	expected = Vec3{2, 4, 6}
	if result != expected {
		t.Errorf("Mul: expected %v, got %v", expected, result)
	}

	// Dot product
	dot := v1.Dot(v2)
	expectedDot := float32(32) // 1*4 + 2*5 + 3*6
	if dot != expectedDot {
		t.Errorf("Dot: expected %v, got %v", expectedDot, dot)
	}

	// Cross product (Right x Up = Front in right-handed system)
	cross := Vec3{1, 0, 0}.Cross(Vec3Up)
	if front := (Vec3{0, 0, 1}); cross != front {
		t.Errorf("Cross: expected %v, got %v", front, cross)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 0}
	normalized := v.Normalize()
	expected := Vec3{1, 0, 0}

	if normalized != expected {
		t.Errorf("Normalize: expected %v, got %v", expected, normalized)
	}

	// Check length is 1
	length := normalized.Length()
	if math.Abs(float64(length-1)) > 0.0001 {
		t.Errorf("Normalize: expected length 1, got %v", length)
	}
}

func TestMat4Identity(t *testing.T) {
	m := Mat4Identity()

	// Check diagonal is 1
	for i := 0; i < 4; i++ {
		if m[i][i] != 1 {
			t.Errorf("Identity: expected diagonal to be 1, got %v", m[i][i])
		}
	}

	// Check non-diagonal is 0
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i != j && m[i][j] != 0 {
				t.Errorf("Identity: expected non-diagonal to be 0, got %v", m[i][j])
			}
		}
	}
}

func TestMat4Multiplication(t *testing.T) {
	m1 := Mat4Identity()
	m2 := Mat4Identity()

	result := m1.Mul(m2)

	// Identity * Identity = Identity
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			expected := float32(0)
			if i == j {
				expected = 1
			}
			if result[i][j] != expected {
				t.Errorf("Mul: expected [%d][%d] = %v, got %v", i, j, expected, result[i][j])
			}
		}
	}
}

func TestMat4Translation(t *testing.T) {
	translation := Vec3{1, 2, 3}
	m := Mat4Translation(translation)

	// Check translation components
	if m[3][0] != 1 || m[3][1] != 2 || m[3][2] != 3 {
		t.Errorf("Translation: expected (1,2,3), got (%v,%v,%v)", m[3][0], m[3][1], m[3][2])
	}

	// Test transforming a point
	point := Vec4{0, 0, 0, 1}
	result := point.MulMat(m)

	if got, ok := result.PerspectiveDivide(); !ok || got != translation {
		t.Errorf("Translation: expected %v, got %v", translation, got)
	}
}

func TestQuaternionIdentity(t *testing.T) {
	q := QuaternionIdentity()

	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("QuaternionIdentity: expected (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuaternionRotation(t *testing.T) {
	// 90 degree rotation around Y axis
	q := QuaternionFromAxisAngle(Vec3Up, float32(math.Pi/2))

	// Rotating +X about +Y gives -Z in a right-handed system
	result := q.ToMat4().MulVec3(Vec3{1, 0, 0})

	tolerance := float32(0.001)
	if math.Abs(float64(result.X-0)) > float64(tolerance) ||
		math.Abs(float64(result.Y-0)) > float64(tolerance) ||
		math.Abs(float64(result.Z+1)) > float64(tolerance) {
		t.Errorf("Quaternion rotation: expected approximately (0,0,-1), got (%v,%v,%v)", result.X, result.Y, result.Z)
	}

	// Two half steps compose to the same rotation
	half := QuaternionFromAxisAngle(Vec3Up, float32(math.Pi/4))
	composed := half.Mul(half).Normalize()
	if d := composed.ToMat4().MulVec3(Vec3{1, 0, 0}).Sub(result).Length(); d > tolerance {
		t.Errorf("Quaternion Mul: composed rotation off by %v", d)
	}
}

func TestMat4LookAt(t *testing.T) {
	eye := Vec3{0, 0, 5}
	target := Vec3{0, 0, 0}
	up := Vec3Up

	m := Mat4LookAt(eye, target, up)

	// The view matrix should transform the eye position to origin
	point := eye.ToVec4(1)
	result := point.MulMat(m)

	tolerance := float32(0.001)
	if math.Abs(float64(result.X)) > float64(tolerance) ||
		math.Abs(float64(result.Y)) > float64(tolerance) ||
		math.Abs(float64(result.Z)) > float64(tolerance) {
		t.Errorf("LookAt: expected eye to transform to origin, got (%v,%v,%v)", result.X, result.Y, result.Z)
	}
}

func TestMat4PerspectiveZODepthRange(t *testing.T) {
	near := float32(0.1)
	far := float32(100.0)
	m := Mat4PerspectiveZO(float32(math.Pi/3), 4.0/3.0, near, far)

	tolerance := 0.0001
	nearPoint := Vec4{0, 0, -near, 1}.MulMat(m)
	if d := nearPoint.Z / nearPoint.W; math.Abs(float64(d)) > tolerance {
		t.Errorf("PerspectiveZO: expected near plane depth 0, got %v", d)
	}

	farPoint := Vec4{0, 0, -far, 1}.MulMat(m)
	if d := farPoint.Z / farPoint.W; math.Abs(float64(d-1)) > tolerance {
		t.Errorf("PerspectiveZO: expected far plane depth 1, got %v", d)
	}

	// Y points down in the target clip space
	up := Vec4{0, 1, -1, 1}.MulMat(m)
	if up.Y >= 0 {
		t.Errorf("PerspectiveZO: expected +Y to map below the center, got %v", up.Y)
	}
}

func TestMat4AppendBytes(t *testing.T) {
	m := Mat4Translation(Vec3{1, 2, 3})
	b := m.AppendBytes(nil)

	if len(b) != 64 {
		t.Fatalf("AppendBytes: expected 64 bytes, got %d", len(b))
	}
	// m[3][0] is the 13th float
	if got := math.Float32frombits(uint32(b[48]) | uint32(b[49])<<8 | uint32(b[50])<<16 | uint32(b[51])<<24); got != 1 {
		t.Errorf("AppendBytes: expected translation X 1 at offset 48, got %v", got)
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, -2, 3}
	b := Vec3{-1, 2, 0}
	if got := a.Min(b); got != (Vec3{-1, -2, 0}) {
		t.Errorf("Min: got %v", got)
	}
	if got := a.Max(b); got != (Vec3{1, 2, 3}) {
		t.Errorf("Max: got %v", got)
	}
}

func TestVec3AppendBytes(t *testing.T) {
	b := Vec3{1, -2, 0.5}.AppendBytes([]byte{0xff})
	if len(b) != 13 || b[0] != 0xff {
		t.Fatalf("AppendBytes: got %d bytes", len(b))
	}
	if y := math.Float32frombits(binary.LittleEndian.Uint32(b[5:])); y != -2 {
		t.Errorf("AppendBytes: Y = %v", y)
	}
}

func TestPerspectiveDivide(t *testing.T) {
	ndc, ok := Vec4{2, 4, 1, 2}.PerspectiveDivide()
	if !ok || ndc != (Vec3{1, 2, 0.5}) {
		t.Errorf("PerspectiveDivide: got %v %v", ndc, ok)
	}
	if _, ok := (Vec4{1, 1, 1, 0}).PerspectiveDivide(); ok {
		t.Error("PerspectiveDivide: W=0 must be rejected")
	}
	if _, ok := (Vec4{1, 1, 1, -1}).PerspectiveDivide(); ok {
		t.Error("PerspectiveDivide: points behind the eye must be rejected")
	}
}

func TestQuaternionFromArray(t *testing.T) {
	q := QuaternionFromArray([4]float64{0, 0, 0, 1})
	if q != QuaternionIdentity() {
		t.Errorf("QuaternionFromArray: got %v", q)
	}
	if q.ToMat4() != Mat4Identity() {
		t.Errorf("identity rotation matrix: got %v", q.ToMat4())
	}
}

func BenchmarkVec3Add(b *testing.B) {
	v1 := Vec3{1, 2, 3}
	v2 := Vec3{4, 5, 6}

	for i := 0; i < b.N; i++ {
		_ = v1.Add(v2)
	}
}

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Mat4Identity()
	m2 := Mat4Identity()

	for i := 0; i < b.N; i++ {
		_ = m1.Mul(m2)
	}
}
