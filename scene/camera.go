package scene

import (
	"github.com/chewxy/math32"

	reMath "render-interop/math"

	"render-interop/interop"
)

// Camera is a perspective camera targeting Vulkan clip space.
type Camera struct {
	Position    reMath.Vec3
	Target      reMath.Vec3
	Up          reMath.Vec3
	FOV         float32
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		Position:    reMath.Vec3{X: 0, Y: 0, Z: 3},
		Target:      reMath.Vec3Zero,
		Up:          reMath.Vec3Up,
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
	}
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.AspectRatio = width / height
	}
}

func (c *Camera) GetViewMatrix() reMath.Mat4 {
	return reMath.Mat4LookAt(c.Position, c.Target, c.Up)
}

func (c *Camera) GetProjectionMatrix() reMath.Mat4 {
	return reMath.Mat4PerspectiveZO(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane)
}

// Uniforms returns the per-frame block for a model transform.
func (c *Camera) Uniforms(model reMath.Mat4) interop.Uniforms {
	return interop.Uniforms{
		Model:      model,
		View:       c.GetViewMatrix(),
		Projection: c.GetProjectionMatrix(),
	}
}

// OrbitCamera circles a target at a fixed distance.
type OrbitCamera struct {
	Camera
	Distance float32
	Yaw      float32
	Pitch    float32
}

func NewOrbitCamera(target reMath.Vec3, distance, fov, aspectRatio float32) *OrbitCamera {
	c := &OrbitCamera{
		Camera:   *NewCamera(fov, aspectRatio, 0.1, 1000.0),
		Distance: distance,
		Pitch:    0.3,
	}
	c.Target = target
	c.UpdatePosition()
	return c
}

func (c *OrbitCamera) UpdatePosition() {
	if c.Pitch > 1.5 {
		c.Pitch = 1.5
	}
	if c.Pitch < -1.5 {
		c.Pitch = -1.5
	}

	cosPitch := math32.Cos(c.Pitch)
	sinPitch := math32.Sin(c.Pitch)
	cosYaw := math32.Cos(c.Yaw)
	sinYaw := math32.Sin(c.Yaw)

	offset := reMath.Vec3{
		X: c.Distance * cosPitch * sinYaw,
		Y: c.Distance * sinPitch,
		Z: c.Distance * cosPitch * cosYaw,
	}
	c.Position = c.Target.Add(offset)
}

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	c.UpdatePosition()
}

// FrameBounds points the camera at the mesh bounding sphere.
func (c *OrbitCamera) FrameBounds(center reMath.Vec3, radius float32) {
	c.Target = center
	c.Distance = radius / math32.Sin(c.FOV/2) * 1.1
	if c.Distance < 0.1 {
		c.Distance = 0.1
	}
	c.NearPlane = c.Distance / 100
	c.FarPlane = c.Distance * 10
	c.UpdatePosition()
}
