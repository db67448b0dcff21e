package optimize

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dynamics/logging"
)

// Params configure the Levenberg-Marquardt optimizer.
type Params struct {
	MaxIterations    int
	RelativeErrorTol float64
	AbsoluteErrorTol float64
	// ErrorTol stops iteration outright once the total error drops below it.
	ErrorTol      float64
	LambdaInitial float64
	LambdaFactor  float64
	LambdaMax     float64
}

// DefaultParams returns the standard optimizer configuration.
func DefaultParams() Params {
	return Params{
		MaxIterations:    100,
		RelativeErrorTol: 1e-5,
		AbsoluteErrorTol: 1e-9,
		ErrorTol:         0,
		LambdaInitial:    1e-5,
		LambdaFactor:     10,
		LambdaMax:        1e7,
	}
}

// Result reports how an optimization run went. Non-convergence is not an
// error; callers that need precision guarantees inspect the final error.
type Result struct {
	Iterations   int
	InitialError float64
	FinalError   float64
}

// Optimizer refines a value assignment against a factor graph using
// Levenberg-Marquardt with diagonal damping.
type Optimizer struct {
	params Params
	logger logging.Logger
}

// NewOptimizer returns an optimizer with the given parameters.
func NewOptimizer(logger logging.Logger, params Params) *Optimizer {
	return &Optimizer{params: params, logger: logger}
}

// Optimize returns a refined copy of the initial assignment. The initial
// assignment must contain a value for every key referenced by the graph.
func (o *Optimizer) Optimize(g *Graph, initial *Values) (*Values, Result, error) {
	ordering, offsets, n, err := buildOrdering(g, initial)
	if err != nil {
		return nil, Result{}, err
	}

	curr := initial.Copy()
	currErr, err := g.Error(curr)
	if err != nil {
		return nil, Result{}, err
	}
	res := Result{InitialError: currErr, FinalError: currErr}
	if n == 0 {
		return curr, res, nil
	}

	lambda := o.params.LambdaInitial
	for iter := 0; iter < o.params.MaxIterations; iter++ {
		hess, grad, err := o.linearize(g, curr, offsets, n)
		if err != nil {
			return nil, res, err
		}

		accepted := false
		for lambda <= o.params.LambdaMax {
			delta, solveErr := solveDamped(hess, grad, lambda, n)
			if solveErr != nil {
				lambda *= o.params.LambdaFactor
				continue
			}
			cand, retractErr := retractAll(curr, ordering, offsets, delta)
			if retractErr != nil {
				return nil, res, retractErr
			}
			candErr, errErr := g.Error(cand)
			if errErr != nil {
				return nil, res, errErr
			}
			if candErr <= currErr {
				prev := currErr
				curr, currErr = cand, candErr
				lambda = math.Max(lambda/o.params.LambdaFactor, 1e-12)
				res.Iterations = iter + 1
				res.FinalError = currErr
				accepted = true
				if converged(o.params, prev, currErr) {
					o.logger.Debugf("converged after %d iterations, error %g", iter+1, currErr)
					return curr, res, nil
				}
				break
			}
			lambda *= o.params.LambdaFactor
		}
		if !accepted {
			o.logger.Debugf("lambda exceeded %g without improvement, stopping", o.params.LambdaMax)
			break
		}
	}
	res.FinalError = currErr
	return curr, res, nil
}

func converged(p Params, prevErr, currErr float64) bool {
	if currErr <= p.ErrorTol {
		return true
	}
	diff := math.Abs(prevErr - currErr)
	if diff < p.AbsoluteErrorTol {
		return true
	}
	return prevErr > 0 && diff/prevErr < p.RelativeErrorTol
}

func buildOrdering(g *Graph, initial *Values) ([]Key, map[Key]int, int, error) {
	seen := map[Key]bool{}
	var ordering []Key
	for _, f := range g.Factors() {
		for _, k := range f.Keys() {
			if !seen[k] {
				seen[k] = true
				ordering = append(ordering, k)
			}
		}
	}
	offsets := make(map[Key]int, len(ordering))
	n := 0
	for _, k := range ordering {
		v, err := initial.At(k)
		if err != nil {
			return nil, nil, 0, errors.Wrap(err, "initial values incomplete")
		}
		offsets[k] = n
		n += v.Dim()
	}
	return ordering, offsets, n, nil
}

// linearize accumulates the whitened normal equations J^T J and J^T r.
func (o *Optimizer) linearize(g *Graph, vs *Values, offsets map[Key]int, n int) (*mat.Dense, []float64, error) {
	hess := mat.NewDense(n, n, nil)
	grad := make([]float64, n)

	for _, f := range g.Factors() {
		r, err := f.Residual(vs)
		if err != nil {
			return nil, nil, err
		}
		jacs, err := f.Jacobians(vs)
		if err != nil {
			return nil, nil, err
		}
		noise := f.Noise()
		w := noise.Whiten(r)
		keys := f.Keys()
		whitened := make([]*mat.Dense, len(jacs))
		for i, jac := range jacs {
			rows, cols := jac.Dims()
			wj := mat.NewDense(rows, cols, nil)
			for ri := 0; ri < rows; ri++ {
				s := 1 / noise.Sigma(ri)
				for ci := 0; ci < cols; ci++ {
					wj.Set(ri, ci, jac.At(ri, ci)*s)
				}
			}
			whitened[i] = wj
		}
		for a, ja := range whitened {
			offA := offsets[keys[a]]
			rows, colsA := ja.Dims()
			// gradient contribution
			for ci := 0; ci < colsA; ci++ {
				sum := 0.
				for ri := 0; ri < rows; ri++ {
					sum += ja.At(ri, ci) * w[ri]
				}
				grad[offA+ci] += sum
			}
			for b, jb := range whitened {
				offB := offsets[keys[b]]
				_, colsB := jb.Dims()
				for ci := 0; ci < colsA; ci++ {
					for cj := 0; cj < colsB; cj++ {
						sum := 0.
						for ri := 0; ri < rows; ri++ {
							sum += ja.At(ri, ci) * jb.At(ri, cj)
						}
						hess.Set(offA+ci, offB+cj, hess.At(offA+ci, offB+cj)+sum)
					}
				}
			}
		}
	}
	return hess, grad, nil
}

func solveDamped(hess *mat.Dense, grad []float64, lambda float64, n int) ([]float64, error) {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := hess.At(i, j)
			if i == j {
				v += lambda
			}
			sym.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, errors.New("damped normal equations not positive definite")
	}
	rhs := mat.NewVecDense(n, nil)
	for i, v := range grad {
		rhs.SetVec(i, -v)
	}
	delta := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(delta, rhs); err != nil {
		return nil, err
	}
	return delta.RawVector().Data, nil
}

func retractAll(vs *Values, ordering []Key, offsets map[Key]int, delta []float64) (*Values, error) {
	out := vs.Copy()
	for _, k := range ordering {
		v, err := vs.At(k)
		if err != nil {
			return nil, err
		}
		off := offsets[k]
		out.Set(k, v.Retract(delta[off:off+v.Dim()]))
	}
	return out, nil
}
