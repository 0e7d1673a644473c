package sound

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// orientationTolerance is the largest |cos| between forward and up that still
// counts as perpendicular.
const orientationTolerance = 1e-3

// ValidateOrientation checks that forward and up are non-zero and
// perpendicular. The engine only calls it when Options.ValidateOrientation is
// set; callers can use it directly as an opt-in check.
func ValidateOrientation(forward, up Vec3) error {
	if forward.Len() < mgl32.Epsilon {
		return errors.New("forward vector is zero")
	}
	if up.Len() < mgl32.Epsilon {
		return errors.New("up vector is zero")
	}

	cos := forward.Normalize().Dot(up.Normalize())
	if mgl32.Abs(cos) > orientationTolerance {
		return fmt.Errorf("forward and up are not perpendicular (cos %.4f)", cos)
	}
	return nil
}
