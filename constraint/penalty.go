package constraint

import (
	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/optimize"
)

// PenaltyParams configure the penalty-continuation outer loop.
type PenaltyParams struct {
	InitialMu     float64
	MuFactor      float64
	MaxIterations int
	Optimizer     optimize.Params
}

// DefaultPenaltyParams returns the standard continuation schedule.
func DefaultPenaltyParams() PenaltyParams {
	return PenaltyParams{
		InitialMu:     1,
		MuFactor:      2,
		MaxIterations: 15,
		Optimizer:     optimize.DefaultParams(),
	}
}

// SolveWithPenalty minimizes the objectives subject to the constraints by
// repeated unconstrained solves with an increasing penalty, stopping as soon
// as every constraint is feasible. Running out of iterations is not an error;
// the caller inspects feasibility of the result if it must be guaranteed.
func SolveWithPenalty(
	logger logging.Logger,
	objectives *optimize.Graph,
	constraints *Constraints,
	initial *optimize.Values,
	params PenaltyParams,
) (*optimize.Values, error) {
	opt := optimize.NewOptimizer(logger, params.Optimizer)
	values := initial
	mu := params.InitialMu
	for i := 0; i < params.MaxIterations; i++ {
		g := optimize.NewGraph()
		g.AddAll(objectives)
		g.AddAll(constraints.MeritGraph(mu))

		solved, result, err := opt.Optimize(g, values)
		if err != nil {
			return nil, err
		}
		values = solved

		ok, err := constraints.Feasible(values)
		if err != nil {
			return nil, err
		}
		logger.Debugf("penalty iteration %d: mu=%g error=%g feasible=%t",
			i, mu, result.FinalError, ok)
		if ok {
			return values, nil
		}
		mu *= params.MuFactor
	}
	logger.Warnf("constraints still infeasible after %d penalty iterations", params.MaxIterations)
	return values, nil
}
