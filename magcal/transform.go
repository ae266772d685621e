package magcal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// epsilon is the float64 machine epsilon, used for the default rank cutoff.
var epsilon = math.Nextafter(1, 2) - 1

// singularDet is the determinant magnitude below which A is treated as singular
const singularDet = 1e-12

// Apply maps a raw sample through the transform
// x' = A11*x + A12*y + B1
// y' = A21*x + A22*y + B2
func (t Transform) Apply(s Sample) Sample {
	return Sample{
		X: t.A11*s.X + t.A12*s.Y + t.B1,
		Y: t.A21*s.X + t.A22*s.Y + t.B2,
	}
}

// ApplyAll maps every sample through the transform into a new slice
func (t Transform) ApplyAll(samples []Sample) []Sample {
	result := make([]Sample, len(samples))
	for i, s := range samples {
		result[i] = t.Apply(s)
	}
	return result
}

// Then composes next after t: applying the result is equivalent to applying
// t first, then next.
//
//	A = A_next · A_t
//	B = A_next · B_t + B_next
func (t Transform) Then(next Transform) Transform {
	return Transform{
		A11: next.A11*t.A11 + next.A12*t.A21,
		A12: next.A11*t.A12 + next.A12*t.A22,
		A21: next.A21*t.A11 + next.A22*t.A21,
		A22: next.A21*t.A12 + next.A22*t.A22,
		B1:  next.A11*t.B1 + next.A12*t.B2 + next.B1,
		B2:  next.A21*t.B1 + next.A22*t.B2 + next.B2,
	}
}

// Det returns the determinant of A
func (t Transform) Det() float64 {
	return t.A11*t.A22 - t.A12*t.A21
}

// Inverse returns the transform mapping corrected samples back to raw ones.
// The boolean is false when A is singular.
func (t Transform) Inverse() (Transform, bool) {
	det := t.Det()
	if math.Abs(det) < singularDet {
		return Transform{}, false
	}

	invDet := 1.0 / det
	inv := Transform{
		A11: t.A22 * invDet,
		A12: -t.A12 * invDet,
		A21: -t.A21 * invDet,
		A22: t.A11 * invDet,
	}
	inv.B1 = -(inv.A11*t.B1 + inv.A12*t.B2)
	inv.B2 = -(inv.A21*t.B1 + inv.A22*t.B2)
	return inv, true
}

// IsFinite reports whether every coefficient is finite
func (t Transform) IsFinite() bool {
	for _, v := range []float64{t.A11, t.A12, t.A21, t.A22, t.B1, t.B2} {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

// Matrix returns A as a 2×2 dense matrix
func (t Transform) Matrix() *mat.Dense {
	return mat.NewDense(2, 2, []float64{t.A11, t.A12, t.A21, t.A22})
}

// Offset returns B as a 2-vector
func (t Transform) Offset() *mat.VecDense {
	return mat.NewVecDense(2, []float64{t.B1, t.B2})
}

// TransformFromMat builds a Transform from a 2×2 matrix and a 2-vector.
func TransformFromMat(a mat.Matrix, b mat.Vector) Transform {
	return Transform{
		A11: a.At(0, 0), A12: a.At(0, 1),
		A21: a.At(1, 0), A22: a.At(1, 1),
		B1: b.AtVec(0), B2: b.AtVec(1),
	}
}

// FitAffine computes the least-squares affine transform mapping src onto dst
// (dst ≈ A·src + B) and returns it with the effective rank of the design
// matrix. Requires at least 3 point pairs.
func FitAffine(src, dst []Sample, rcond float64) (Transform, int, error) {
	n := len(src)
	if n != len(dst) {
		return Identity(), 0, fmt.Errorf("fitting %d sources to %d targets: %w", n, len(dst), ErrLengthMismatch)
	}
	if n < MinSamples {
		return Identity(), 0, &InsufficientDataError{Count: n, Required: MinSamples}
	}

	design := mat.NewDense(n, 3, nil)
	target := mat.NewDense(n, 2, nil)
	for i := range src {
		design.SetRow(i, []float64{src[i].X, src[i].Y, 1})
		target.SetRow(i, []float64{dst[i].X, dst[i].Y})
	}
	return solveAffine(design, target, rcond)
}

// solveAffine solves design · C = target for the 3×2 coefficient matrix C
// using a thin SVD, giving the minimum-norm solution when design is rank
// deficient. Each design row is [x y 1], so C^T = [A | B].
func solveAffine(design, target *mat.Dense, rcond float64) (Transform, int, error) {
	rows, cols := design.Dims()
	if rcond <= 0 {
		rcond = epsilon * float64(max(rows, cols))
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return Identity(), 0, errors.New("SVD factorization failed to converge")
	}

	rank := svd.Rank(rcond)
	if rank == 0 {
		// Only reachable for an all-zero design, which the constant column rules out.
		return Transform{}, 0, nil
	}

	var c mat.Dense
	svd.SolveTo(&c, target, rank)

	return Transform{
		A11: c.At(0, 0), A12: c.At(1, 0), B1: c.At(2, 0),
		A21: c.At(0, 1), A22: c.At(1, 1), B2: c.At(2, 1),
	}, rank, nil
}
