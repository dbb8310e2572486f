// Package spatialmath provides the rotation algebra used by the camera
// model: conversions between R3/R4 axis-angle representations and 3x3
// rotation matrices, backed by unit quaternions.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// An orientation can be expressed by specifying an axis, i.e. a line from
// the origin to a point on the unit sphere, represented by (rx, ry, rz),
// and a rotation around that axis, theta. These four numbers can be used
// as-is (R4), or theta can be multiplied into the unit axis components to
// give a single vector whose length is theta and whose direction is the
// axis (R3).

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an R4AA representing no rotation.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// ToR3 converts an R4 axis angle to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// ToQuat converts an R4 axis angle to a unit quaternion.
func (r4 *R4AA) ToQuat() quat.Number {
	sinA := math.Sin(r4.Theta / 2)
	// Ensure that point xyz is on the unit sphere
	r4.Normalize()

	ax := r4.RX * sinA
	ay := r4.RY * sinA
	az := r4.RZ * sinA
	w := math.Cos(r4.Theta / 2)
	return quat.Number{Real: w, Imag: ax, Jmag: ay, Kmag: az}
}

// Normalize scales the x, y, and z components of a R4 axis angle to be on
// the unit sphere.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0.0 { // prevent division by 0
		panic("cannot normalize R4AA, divide by zero")
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// R3ToR4 converts an R3 angle axis to R4. The zero vector maps to no
// rotation.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	return &R4AA{Theta: theta, RX: aa.X / theta, RY: aa.Y / theta, RZ: aa.Z / theta}
}

// QuatToR4AA converts a unit quaternion to an R4 axis angle, with theta
// in [0, pi].
func QuatToR4AA(q quat.Number) *R4AA {
	w := q.Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	denom := math.Sqrt(1 - w*w)
	theta := 2 * math.Acos(w)
	if theta > math.Pi {
		theta = 2*math.Pi - theta
		denom = -denom
	}
	if denom < 1e-12 && denom > -1e-12 {
		// arbitrary axis for the null rotation
		return NewR4AA()
	}
	return &R4AA{Theta: theta, RX: q.Imag / denom, RY: q.Jmag / denom, RZ: q.Kmag / denom}
}

// QuatToRotationMatrix converts a unit quaternion to a 3x3 rotation matrix.
func QuatToRotationMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// RotationMatrixToQuat converts a 3x3 rotation matrix to a unit
// quaternion using Shepperd's method.
func RotationMatrixToQuat(m mat.Matrix) quat.Number {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	tr := m00 + m11 + m22
	var w, x, y, z float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		w = s / 4
		x = (m21 - m12) / s
		y = (m02 - m20) / s
		z = (m10 - m01) / s
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		w = (m21 - m12) / s
		x = s / 4
		y = (m01 + m10) / s
		z = (m02 + m20) / s
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		w = (m02 - m20) / s
		x = (m01 + m10) / s
		y = s / 4
		z = (m12 + m21) / s
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		w = (m10 - m01) / s
		x = (m02 + m20) / s
		y = (m12 + m21) / s
		z = s / 4
	}
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// RodriguesToRotationMatrix converts an R3 axis-angle vector to its
// rotation matrix via the Rodrigues mapping.
func RodriguesToRotationMatrix(rvec r3.Vector) *mat.Dense {
	return QuatToRotationMatrix(R3ToR4(rvec).ToQuat())
}

// RotationMatrixToRodrigues is the inverse Rodrigues mapping, returning
// the R3 axis-angle vector of a rotation matrix.
func RotationMatrixToRodrigues(m mat.Matrix) r3.Vector {
	return QuatToR4AA(RotationMatrixToQuat(m)).ToR3()
}
