// Package camera is a first-person Euler camera. Its pose drives the audio
// listener.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Defaults for a new camera.
const (
	DefaultYaw         = -90.0
	DefaultPitch       = 0.0
	DefaultSpeed       = 2.5
	DefaultRunSpeed    = 6.0
	DefaultSensitivity = 0.1
	DefaultZoom        = 45.0

	maxPitch = 89.0
	minZoom  = 1.0
	maxZoom  = 45.0
)

// Direction is a movement direction relative to the camera.
type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
	Up
	Down
)

// Camera tracks a position and Euler angles and derives the view vectors
// from them.
type Camera struct {
	Position mgl32.Vec3
	Front    mgl32.Vec3
	Up       mgl32.Vec3
	Right    mgl32.Vec3
	WorldUp  mgl32.Vec3

	Yaw   float32
	Pitch float32

	Speed       float32
	RunSpeed    float32
	Sensitivity float32
	Zoom        float32

	// Grounded keeps forward and backward movement in the horizontal plane.
	Grounded bool
	Running  bool
}

// New creates a camera at position looking down -Z.
func New(position mgl32.Vec3) *Camera {
	c := &Camera{
		Position:    position,
		WorldUp:     mgl32.Vec3{0, 1, 0},
		Yaw:         DefaultYaw,
		Pitch:       DefaultPitch,
		Speed:       DefaultSpeed,
		RunSpeed:    DefaultRunSpeed,
		Sensitivity: DefaultSensitivity,
		Zoom:        DefaultZoom,
	}
	c.updateVectors()
	return c
}

// Move moves the camera for dt seconds in dir.
func (c *Camera) Move(dir Direction, dt float32) {
	velocity := c.Speed
	if c.Running {
		velocity = c.RunSpeed
	}
	velocity *= dt

	front := c.Front
	if c.Grounded {
		front = mgl32.Vec3{front.X(), 0, front.Z()}
		if front.Len() > mgl32.Epsilon {
			front = front.Normalize()
		}
	}

	switch dir {
	case Forward:
		c.Position = c.Position.Add(front.Mul(velocity))
	case Backward:
		c.Position = c.Position.Sub(front.Mul(velocity))
	case Left:
		c.Position = c.Position.Sub(c.Right.Mul(velocity))
	case Right:
		c.Position = c.Position.Add(c.Right.Mul(velocity))
	case Up:
		c.Position = c.Position.Add(c.WorldUp.Mul(velocity))
	case Down:
		c.Position = c.Position.Sub(c.WorldUp.Mul(velocity))
	}
}

// Look turns the camera by a mouse-style offset. With constrain set the pitch
// stays within ±89 degrees.
func (c *Camera) Look(dx, dy float32, constrain bool) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch += dy * c.Sensitivity
	if constrain {
		c.Pitch = mgl32.Clamp(c.Pitch, -maxPitch, maxPitch)
	}
	c.updateVectors()
}

// ZoomBy narrows the field of view by dy degrees, within [1, 45].
func (c *Camera) ZoomBy(dy float32) {
	c.Zoom = mgl32.Clamp(c.Zoom-dy, minZoom, maxZoom)
}

// Pose returns the position and orientation for the audio listener.
func (c *Camera) Pose() (pos, front, up mgl32.Vec3) {
	return c.Position, c.Front, c.Up
}

// View returns the look-at view matrix.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Front), c.Up)
}

// Projection returns a perspective matrix using the zoom as field of view.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Zoom), aspect, 0.1, 100)
}

func (c *Camera) updateVectors() {
	yaw := mgl32.DegToRad(c.Yaw)
	pitch := mgl32.DegToRad(c.Pitch)
	front := mgl32.Vec3{
		cos(yaw) * cos(pitch),
		sin(pitch),
		sin(yaw) * cos(pitch),
	}
	c.Front = front.Normalize()
	c.Right = c.Front.Cross(c.WorldUp).Normalize()
	c.Up = c.Right.Cross(c.Front).Normalize()
}
