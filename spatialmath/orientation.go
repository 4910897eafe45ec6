package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// NewZeroOrientation returns the quaternion which signifies no rotation.
func NewZeroOrientation() quat.Number {
	return quat.Number{Real: 1}
}

// QuaternionAlmostEqual is an equality test for all the float components of a quaternion. Quaternions have double coverage, q == -q,
// and this function will *not* account for this. Use OrientationAlmostEqual unless you're certain this is what you want.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	return math.Abs(a.Real-b.Real) <= tol &&
		math.Abs(a.Imag-b.Imag) <= tol &&
		math.Abs(a.Jmag-b.Jmag) <= tol &&
		math.Abs(a.Kmag-b.Kmag) <= tol
}

// OrientationAlmostEqual returns whether two quaternions represent approximately the same rotation,
// accounting for q and -q describing the same orientation.
func OrientationAlmostEqual(a, b quat.Number) bool {
	return QuaternionAlmostEqual(a, b, 1e-5) || QuaternionAlmostEqual(a, quat.Scale(-1, b), 1e-5)
}

// QuatNorm returns the euclidean norm of a quaternion.
func QuatNorm(q quat.Number) float64 {
	return quat.Abs(q)
}

// OrientationBetween returns the rotation taking o1 to o2.
func OrientationBetween(o1, o2 quat.Number) quat.Number {
	return quat.Mul(o2, quat.Conj(o1))
}

// OrientationDistance returns the angle in radians of the smallest rotation taking a to b. Both
// quaternions must be unit length.
func OrientationDistance(a, b quat.Number) float64 {
	return 2 * math.Acos(clampUnit(math.Abs(OrientationBetween(a, b).Real)))
}
