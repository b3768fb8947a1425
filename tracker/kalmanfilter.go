package tracker

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// stateDim is x, y, a, h and their velocities
	stateDim = 8
	// measureDim is x, y, a, h
	measureDim = 4
)

// KalmanFilter is a constant velocity Kalman filter over the box center,
// aspect ratio and height
type KalmanFilter struct {
	stdWeightPosition float64
	stdWeightVelocity float64
	motionMat         *mat.Dense
	updateMat         *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter
func NewKalmanFilter(stdWeightPosition, stdWeightVelocity float64) *KalmanFilter {

	motionMat := mat.NewDense(stateDim, stateDim, nil)

	for i := 0; i < stateDim; i++ {
		motionMat.Set(i, i, 1)
	}

	// position advances by velocity each frame
	for i := 0; i < measureDim; i++ {
		motionMat.Set(i, measureDim+i, 1)
	}

	updateMat := mat.NewDense(measureDim, stateDim, nil)

	for i := 0; i < measureDim; i++ {
		updateMat.Set(i, i, 1)
	}

	return &KalmanFilter{
		stdWeightPosition: stdWeightPosition,
		stdWeightVelocity: stdWeightVelocity,
		motionMat:         motionMat,
		updateMat:         updateMat,
	}
}

// diagonal returns a symmetric matrix with the squares of std on its
// diagonal
func diagonal(std []float64) *mat.SymDense {
	d := mat.NewSymDense(len(std), nil)
	for i, v := range std {
		d.SetSym(i, i, v*v)
	}
	return d
}

// symmetric copies a square matrix into a SymDense, averaging opposite
// elements to remove rounding asymmetry
func symmetric(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}

// Initiate creates the state mean and covariance from an unassociated
// measurement
func (kf *KalmanFilter) Initiate(measurement Xyah) (*mat.VecDense, *mat.SymDense) {

	mean := mat.NewVecDense(stateDim, nil)

	for i := 0; i < measureDim; i++ {
		mean.SetVec(i, measurement[i])
	}

	h := measurement[3]

	covariance := diagonal([]float64{
		2 * kf.stdWeightPosition * h,
		2 * kf.stdWeightPosition * h,
		1e-2,
		2 * kf.stdWeightPosition * h,
		10 * kf.stdWeightVelocity * h,
		10 * kf.stdWeightVelocity * h,
		1e-5,
		10 * kf.stdWeightVelocity * h,
	})

	return mean, covariance
}

// Predict runs the prediction step, mean and covariance are updated in
// place
func (kf *KalmanFilter) Predict(mean *mat.VecDense, covariance *mat.SymDense) {

	h := mean.AtVec(3)

	motionCov := diagonal([]float64{
		kf.stdWeightPosition * h,
		kf.stdWeightPosition * h,
		1e-2,
		kf.stdWeightPosition * h,
		kf.stdWeightVelocity * h,
		kf.stdWeightVelocity * h,
		1e-5,
		kf.stdWeightVelocity * h,
	})

	var next mat.VecDense
	next.MulVec(kf.motionMat, mean)
	mean.CopyVec(&next)

	var cov mat.Dense
	cov.Product(kf.motionMat, covariance, kf.motionMat.T())
	cov.Add(&cov, motionCov)

	covariance.CopySym(symmetric(&cov))
}

// project maps the state distribution to measurement space
func (kf *KalmanFilter) project(mean *mat.VecDense, covariance *mat.SymDense) (*mat.VecDense, *mat.SymDense) {

	h := mean.AtVec(3)

	innovationCov := diagonal([]float64{
		kf.stdWeightPosition * h,
		kf.stdWeightPosition * h,
		1e-1,
		kf.stdWeightPosition * h,
	})

	projectedMean := mat.NewVecDense(measureDim, nil)
	projectedMean.MulVec(kf.updateMat, mean)

	var cov mat.Dense
	cov.Product(kf.updateMat, covariance, kf.updateMat.T())
	cov.Add(&cov, innovationCov)

	return projectedMean, symmetric(&cov)
}

// Update runs the correction step with a new measurement, mean and
// covariance are updated in place
func (kf *KalmanFilter) Update(mean *mat.VecDense, covariance *mat.SymDense, measurement Xyah) error {

	projectedMean, projectedCov := kf.project(mean, covariance)

	var chol mat.Cholesky

	if ok := chol.Factorize(projectedCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// gainT = S^-1 * H * P which is the transpose of the Kalman gain as both
	// S and P are symmetric
	var hp mat.Dense
	hp.Mul(kf.updateMat, covariance)

	var gainT mat.Dense

	if err := chol.SolveTo(&gainT, &hp); err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	innovation := mat.NewVecDense(measureDim, nil)

	for i := 0; i < measureDim; i++ {
		innovation.SetVec(i, measurement[i]-projectedMean.AtVec(i))
	}

	var correction mat.VecDense
	correction.MulVec(gainT.T(), innovation)
	mean.AddVec(mean, &correction)

	var reduce mat.Dense
	reduce.Product(gainT.T(), projectedCov, &gainT)

	var cov mat.Dense
	cov.Sub(covariance, &reduce)

	covariance.CopySym(symmetric(&cov))

	return nil
}
