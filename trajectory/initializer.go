package trajectory

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/dynamics/dynamics"
	"go.viam.com/dynamics/kinematics"
	"go.viam.com/dynamics/logging"
	"go.viam.com/dynamics/optimize"
	"go.viam.com/dynamics/robot"
	"go.viam.com/dynamics/spatialmath"
)

// poseTargetSigma weights the pose prior pulling a moving link toward its
// interpolated target during per-step IK initialization. Looser than the
// kinematic consistency factors, so the chain stays consistent when a target
// is unreachable.
const poseTargetSigma = 1e-3

// Initializer generates initial assignments for trajectory optimization. All
// randomness flows through one seeded stream, so runs are reproducible.
type Initializer struct {
	robot  *robot.Robot
	logger logging.Logger
	rnd    *rand.Rand
}

// NewInitializer returns an initializer for a robot.
func NewInitializer(logger logging.Logger, r *robot.Robot) *Initializer {
	return &Initializer{robot: r, logger: logger, rnd: rand.New(rand.NewSource(0))}
}

// Seed fixes the random stream.
func (in *Initializer) Seed(seed uint64) {
	in.rnd = rand.New(rand.NewSource(seed))
}

func (in *Initializer) sample(n int, sigma float64) []float64 {
	out := make([]float64, n)
	if sigma <= 0 {
		return out
	}
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: in.rnd}
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// AddGaussianNoiseToPose perturbs a pose by the exponential of a zero-mean
// Gaussian body-frame twist.
func (in *Initializer) AddGaussianNoiseToPose(p spatialmath.Pose, sigma float64) spatialmath.Pose {
	if sigma <= 0 {
		return p
	}
	return spatialmath.Compose(p, spatialmath.Exp(spatialmath.TwistFromSlice(in.sample(6, sigma))))
}

// InterpolatePoses returns one pose per timestep in [tInit, tFinal], blending
// from wTlInit to wTlFinal.
func InterpolatePoses(wTlInit, wTlFinal spatialmath.Pose, tInit, tFinal int) ([]spatialmath.Pose, error) {
	if tFinal < tInit {
		return nil, errors.Errorf("interval end %d before start %d", tFinal, tInit)
	}
	steps := tFinal - tInit
	out := make([]spatialmath.Pose, steps+1)
	for k := 0; k <= steps; k++ {
		s := 0.
		if steps > 0 {
			s = float64(k) / float64(steps)
		}
		out[k] = spatialmath.Interpolate(wTlInit, wTlFinal, s)
	}
	return out, nil
}

// ZeroValues assigns every unknown of one timestep its rest value, perturbed
// by Gaussian noise: link poses at the rest center-of-mass pose, everything
// else around zero.
func (in *Initializer) ZeroValues(t int, sigma float64) (*optimize.Values, error) {
	vs := optimize.NewValues()
	for _, l := range in.robot.Links() {
		if err := dynamics.InsertPose(vs, l.ID(), t, in.AddGaussianNoiseToPose(l.WTcom(), sigma)); err != nil {
			return nil, err
		}
		if err := dynamics.InsertTwist(vs, l.ID(), t, spatialmath.TwistFromSlice(in.sample(6, sigma))); err != nil {
			return nil, err
		}
		if err := dynamics.InsertTwistAccel(vs, l.ID(), t, spatialmath.TwistFromSlice(in.sample(6, sigma))); err != nil {
			return nil, err
		}
	}
	for _, j := range in.robot.Joints() {
		id := j.ID()
		if err := dynamics.InsertJointAngle(vs, id, t, in.sample(1, sigma)[0]); err != nil {
			return nil, err
		}
		if err := dynamics.InsertJointVel(vs, id, t, in.sample(1, sigma)[0]); err != nil {
			return nil, err
		}
		if err := dynamics.InsertJointAccel(vs, id, t, in.sample(1, sigma)[0]); err != nil {
			return nil, err
		}
		if err := dynamics.InsertTorque(vs, id, t, in.sample(1, sigma)[0]); err != nil {
			return nil, err
		}
		if err := dynamics.InsertWrench(vs, id, t, spatialmath.TwistFromSlice(in.sample(6, sigma))); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// ZeroValuesTrajectory assigns rest values for every timestep in
// [tInit, tFinal].
func (in *Initializer) ZeroValuesTrajectory(tInit, tFinal int, sigma float64) (*optimize.Values, error) {
	if tFinal < tInit {
		return nil, errors.Errorf("interval end %d before start %d", tFinal, tInit)
	}
	out := optimize.NewValues()
	for t := tInit; t <= tFinal; t++ {
		vs, err := in.ZeroValues(t, sigma)
		if err != nil {
			return nil, err
		}
		out.Merge(vs)
	}
	return out, nil
}

// MultiPhaseZeroValuesTrajectory assigns rest values for a whole trajectory
// plus one duration per phase.
func (in *Initializer) MultiPhaseZeroValuesTrajectory(tr *Trajectory, dts []float64, sigma float64) (*optimize.Values, error) {
	if len(dts) != tr.NumPhases() {
		return nil, errors.Errorf("expected %d phase durations, got %d", tr.NumPhases(), len(dts))
	}
	vs, err := in.ZeroValuesTrajectory(0, tr.FinalTimestep(), sigma)
	if err != nil {
		return nil, err
	}
	for k, dt := range dts {
		if err := dynamics.InsertPhaseDuration(vs, k, dt); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func (in *Initializer) movingLink(name string) (*robot.Link, error) {
	l, err := in.robot.Link(name)
	if err != nil {
		return nil, err
	}
	if l.Fixed() {
		return nil, errors.Errorf("link %q is fixed in the world and cannot follow a target", name)
	}
	return l, nil
}

// InitializeSolutionInterpolation seeds [tInit, tFinal] by interpolating one
// link's pose between two targets and filling every remaining unknown with
// noisy rest values. The interpolated poses keep the assignment near the
// intended motion without any solving.
func (in *Initializer) InitializeSolutionInterpolation(
	linkName string,
	wTlInit, wTlFinal spatialmath.Pose,
	tInit, tFinal int,
	sigma float64,
) (*optimize.Values, error) {
	l, err := in.movingLink(linkName)
	if err != nil {
		return nil, err
	}
	poses, err := InterpolatePoses(wTlInit, wTlFinal, tInit, tFinal)
	if err != nil {
		return nil, err
	}

	out := optimize.NewValues()
	for k, pose := range poses {
		if err := dynamics.InsertPose(out, l.ID(), tInit+k, in.AddGaussianNoiseToPose(pose, sigma)); err != nil {
			return nil, err
		}
	}
	rest, err := in.ZeroValuesTrajectory(tInit, tFinal, sigma)
	if err != nil {
		return nil, err
	}
	// interpolated poses win over the rest fill
	out.Merge(rest)
	return out, nil
}

// InitializeSolutionInterpolationMultiPhase chains per-phase interpolations
// through a sequence of waypoint poses, one per phase boundary.
func (in *Initializer) InitializeSolutionInterpolationMultiPhase(
	linkName string,
	waypoints []spatialmath.Pose,
	tr *Trajectory,
	sigma float64,
) (*optimize.Values, error) {
	if len(waypoints) != tr.NumPhases()+1 {
		return nil, errors.Errorf("expected %d waypoints for %d phases, got %d",
			tr.NumPhases()+1, tr.NumPhases(), len(waypoints))
	}
	out := optimize.NewValues()
	for k, p := range tr.phases {
		vs, err := in.InitializeSolutionInterpolation(
			linkName, waypoints[k], waypoints[k+1], p.interval.Start, p.interval.End, sigma)
		if err != nil {
			return nil, err
		}
		out.Merge(vs)
	}
	return out, nil
}

// InitializePosesAndJoints tracks one link's interpolated target with a
// kinematic solve at every timestep in [tInit, tFinal], returning the solved
// link poses and joint coordinates. Each step seeds from the previous step's
// solution; per-step failures are accumulated and do not stop later steps.
func (in *Initializer) InitializePosesAndJoints(
	linkName string,
	wTlInit, wTlFinal spatialmath.Pose,
	tInit, tFinal int,
	sigma float64,
) (*optimize.Values, error) {
	l, err := in.movingLink(linkName)
	if err != nil {
		return nil, err
	}
	poses, err := InterpolatePoses(wTlInit, wTlFinal, tInit, tFinal)
	if err != nil {
		return nil, err
	}

	params := kinematics.DefaultParameters()
	solver, err := kinematics.NewSolver(in.logger, in.robot, params)
	if err != nil {
		return nil, err
	}

	out := optimize.NewValues()
	var errs error
	var seedAngles []float64
	for k, pose := range poses {
		t := tInit + k
		g := solver.Graph(t)
		g.Add(optimize.NewPriorFactor(
			dynamics.PoseKey(l.ID(), t),
			dynamics.NewPoseValue(in.AddGaussianNoiseToPose(pose, sigma)),
			optimize.Isotropic(6, poseTargetSigma)))
		priors, err := solver.JointAngleObjectives(t, seedAngles)
		if err != nil {
			return nil, err
		}
		g.AddAll(priors)

		noise := params.InitNoise
		if seedAngles != nil {
			noise = 0
		}
		initial, err := solver.InitialValues(t, seedAngles, noise)
		if err != nil {
			return nil, err
		}
		opt := optimize.NewOptimizer(in.logger, params.Optimizer)
		solved, result, err := opt.Optimize(g, initial)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "ik step %d", t))
			continue
		}
		in.logger.Debugf("ik init at t=%d: %d iterations, error %g", t, result.Iterations, result.FinalError)
		out.Merge(solved)

		seedAngles = make([]float64, in.robot.NumJoints())
		for _, j := range in.robot.Joints() {
			q, err := dynamics.JointAngle(solved, j.ID(), t)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			seedAngles[j.ID()] = q
		}
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// InitializeSolutionInverseKinematics seeds [tInit, tFinal] with per-step
// kinematic tracking of the moving link's interpolated target, then fills
// every unknown the solves leave open with noisy rest values.
func (in *Initializer) InitializeSolutionInverseKinematics(
	linkName string,
	wTlInit, wTlFinal spatialmath.Pose,
	tInit, tFinal int,
	sigma float64,
) (*optimize.Values, error) {
	out, err := in.InitializePosesAndJoints(linkName, wTlInit, wTlFinal, tInit, tFinal, sigma)
	if err != nil {
		return nil, err
	}
	rest, err := in.ZeroValuesTrajectory(tInit, tFinal, sigma)
	if err != nil {
		return nil, err
	}
	out.Merge(rest)
	return out, nil
}

// InitializeSolutionInverseKinematicsMultiPhase runs per-step kinematic
// initialization across a whole trajectory through waypoint poses, one per
// phase boundary, and adds the phase durations.
func (in *Initializer) InitializeSolutionInverseKinematicsMultiPhase(
	linkName string,
	waypoints []spatialmath.Pose,
	tr *Trajectory,
	dts []float64,
	sigma float64,
) (*optimize.Values, error) {
	if len(waypoints) != tr.NumPhases()+1 {
		return nil, errors.Errorf("expected %d waypoints for %d phases, got %d",
			tr.NumPhases()+1, tr.NumPhases(), len(waypoints))
	}
	if len(dts) != tr.NumPhases() {
		return nil, errors.Errorf("expected %d phase durations, got %d", tr.NumPhases(), len(dts))
	}
	out := optimize.NewValues()
	for k, p := range tr.phases {
		vs, err := in.InitializeSolutionInverseKinematics(
			linkName, waypoints[k], waypoints[k+1], p.interval.Start, p.interval.End, sigma)
		if err != nil {
			return nil, err
		}
		out.Merge(vs)
	}
	for k, dt := range dts {
		if err := dynamics.InsertPhaseDuration(out, k, dt); err != nil {
			return nil, err
		}
	}
	return out, nil
}
