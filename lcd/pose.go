package lcd

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Pose is a rigid 3D transform: p' = R*p + T. R is row-major.
type Pose struct {
	R [9]float64 `json:"r"`
	T Point3     `json:"t"`
}

// IdentityPose returns the identity transform.
func IdentityPose() Pose {
	return Pose{R: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// RotationZ builds a pose rotating by the given angle (degrees) around the
// Z axis with zero translation. Handy for tests and yaw-only trajectories.
func RotationZ(degrees float64) Pose {
	rad := degrees * math.Pi / 180.0
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	return Pose{R: [9]float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	}}
}

// Translation builds a translation-only pose.
func Translation(x, y, z float64) Pose {
	p := IdentityPose()
	p.T = Point3{X: x, Y: y, Z: z}
	return p
}

// Apply transforms a point by the pose.
func (p Pose) Apply(pt Point3) Point3 {
	return Point3{
		X: p.R[0]*pt.X + p.R[1]*pt.Y + p.R[2]*pt.Z + p.T.X,
		Y: p.R[3]*pt.X + p.R[4]*pt.Y + p.R[5]*pt.Z + p.T.Y,
		Z: p.R[6]*pt.X + p.R[7]*pt.Y + p.R[8]*pt.Z + p.T.Z,
	}
}

// Compose returns p * q: applying the result is equivalent to applying q
// first, then p.
func (p Pose) Compose(q Pose) Pose {
	var out Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += p.R[i*3+k] * q.R[k*3+j]
			}
			out.R[i*3+j] = sum
		}
	}
	out.T = p.Apply(q.T)
	return out
}

// Inverse returns the inverse transform. For a rotation the inverse is the
// transpose, so no matrix solve is needed.
func (p Pose) Inverse() Pose {
	var out Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i*3+j] = p.R[j*3+i]
		}
	}
	t := out.applyRotation(p.T)
	out.T = Point3{X: -t.X, Y: -t.Y, Z: -t.Z}
	return out
}

// Between returns the transform taking frame q into frame p: p^-1 * q.
func (p Pose) Between(q Pose) Pose {
	return p.Inverse().Compose(q)
}

func (p Pose) applyRotation(pt Point3) Point3 {
	return Point3{
		X: p.R[0]*pt.X + p.R[1]*pt.Y + p.R[2]*pt.Z,
		Y: p.R[3]*pt.X + p.R[4]*pt.Y + p.R[5]*pt.Z,
		Z: p.R[6]*pt.X + p.R[7]*pt.Y + p.R[8]*pt.Z,
	}
}

// Distance3 returns the Euclidean distance between two points.
func Distance3(a, b Point3) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Centroid3 returns the center of mass of a point set.
func Centroid3(points []Point3) Point3 {
	if len(points) == 0 {
		return Point3{}
	}
	var sx, sy, sz float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
		sz += p.Z
	}
	n := float64(len(points))
	return Point3{X: sx / n, Y: sy / n, Z: sz / n}
}

// kabsch computes the best-fit rigid transform mapping source onto target
// in the least-squares sense (Kabsch/Procrustes). The rotation comes from
// the SVD of the cross-covariance matrix, with the usual determinant
// correction so a reflection is never returned. Returns identity and false
// when the point sets are too small or the SVD fails.
func kabsch(source, target []Point3) (Pose, bool) {
	n := len(source)
	if n < 3 || n != len(target) {
		return IdentityPose(), false
	}

	srcCentroid := Centroid3(source)
	tgtCentroid := Centroid3(target)

	// Cross-covariance H = sum (tgt_i - tgtC) * (src_i - srcC)^T
	h := mat.NewDense(3, 3, nil)
	for i := 0; i < n; i++ {
		s := [3]float64{source[i].X - srcCentroid.X, source[i].Y - srcCentroid.Y, source[i].Z - srcCentroid.Z}
		t := [3]float64{target[i].X - tgtCentroid.X, target[i].Y - tgtCentroid.Y, target[i].Z - tgtCentroid.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+t[r]*s[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return IdentityPose(), false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = U * diag(1, 1, det(U*V^T)) * V^T
	var rot mat.Dense
	rot.Mul(&u, v.T())
	if mat.Det(&rot) < 0 {
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var tmp mat.Dense
		tmp.Mul(&u, d)
		rot.Mul(&tmp, v.T())
	}

	var pose Pose
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			pose.R[r*3+c] = rot.At(r, c)
		}
	}
	rotated := pose.applyRotation(srcCentroid)
	pose.T = Point3{
		X: tgtCentroid.X - rotated.X,
		Y: tgtCentroid.Y - rotated.Y,
		Z: tgtCentroid.Z - rotated.Z,
	}
	return pose, true
}
