package robot

import (
	"github.com/pkg/errors"

	"go.viam.com/dynamics/spatialmath"
)

// Robot is an articulated rigid-body model: indexed storage for links and
// joints plus name lookup. Joints must form a tree over the links; AddJoint
// rejects anything that would close a cycle.
type Robot struct {
	name   string
	links  []*Link
	joints []*Joint

	linkByName  map[string]int
	jointByName map[string]int
}

// NewRobot returns an empty model.
func NewRobot(name string) *Robot {
	return &Robot{
		name:        name,
		linkByName:  map[string]int{},
		jointByName: map[string]int{},
	}
}

// Name returns the model's name.
func (r *Robot) Name() string { return r.name }

// NumLinks returns how many links the model has.
func (r *Robot) NumLinks() int { return len(r.links) }

// NumJoints returns how many joints the model has.
func (r *Robot) NumJoints() int { return len(r.joints) }

// Links returns all links in id order.
func (r *Robot) Links() []*Link { return r.links }

// Joints returns all joints in id order.
func (r *Robot) Joints() []*Joint { return r.joints }

// AddLink adds a link to the model, assigning it the next id.
func (r *Robot) AddLink(params LinkParams) (*Link, error) {
	if params.Name == "" {
		return nil, errors.New("link needs a name")
	}
	if _, ok := r.linkByName[params.Name]; ok {
		return nil, errors.Errorf("duplicate link name %q", params.Name)
	}
	l := &Link{
		id:      len(r.links),
		name:    params.Name,
		mass:    params.Mass,
		inertia: params.Inertia,
		bMcom:   params.BMcom,
		wTl:     params.WTl,
	}
	r.links = append(r.links, l)
	r.linkByName[l.name] = l.id
	return l, nil
}

// AddJoint adds a joint between two existing links, assigning it the next id.
func (r *Robot) AddJoint(params JointParams) (*Joint, error) {
	if params.Name == "" {
		return nil, errors.New("joint needs a name")
	}
	if _, ok := r.jointByName[params.Name]; ok {
		return nil, errors.Errorf("duplicate joint name %q", params.Name)
	}
	parent, err := r.Link(params.Parent)
	if err != nil {
		return nil, errors.Wrapf(err, "joint %q parent", params.Name)
	}
	child, err := r.Link(params.Child)
	if err != nil {
		return nil, errors.Wrapf(err, "joint %q child", params.Name)
	}
	if parent.id == child.id {
		return nil, errors.Errorf("joint %q connects link %q to itself", params.Name, parent.name)
	}
	if r.connected(parent.id, child.id) {
		return nil, errors.Errorf("joint %q would close a loop between %q and %q", params.Name, parent.name, child.name)
	}

	j := &Joint{
		id:     len(r.joints),
		name:   params.Name,
		jtype:  params.Type,
		axis:   params.Axis,
		pitch:  params.ThreadPitch,
		wTj:    params.WTj,
		parent: parent.id,
		child:  child.id,
		limits: params.Limits,
	}
	j.screwAxis = computeScrewAxis(j.jtype, j.wTj, j.axis, j.pitch, child.WTcom())
	j.restPMC = spatialmath.Between(parent.WTcom(), child.WTcom())

	r.joints = append(r.joints, j)
	r.jointByName[j.name] = j.id
	parent.joints = append(parent.joints, j.id)
	child.joints = append(child.joints, j.id)
	return j, nil
}

// Link looks up a link by name.
func (r *Robot) Link(name string) (*Link, error) {
	id, ok := r.linkByName[name]
	if !ok {
		return nil, errors.Errorf("no link named %q", name)
	}
	return r.links[id], nil
}

// Joint looks up a joint by name.
func (r *Robot) Joint(name string) (*Joint, error) {
	id, ok := r.jointByName[name]
	if !ok {
		return nil, errors.Errorf("no joint named %q", name)
	}
	return r.joints[id], nil
}

// LinkByID returns the link with the given id.
func (r *Robot) LinkByID(id int) (*Link, error) {
	if id < 0 || id >= len(r.links) {
		return nil, errors.Errorf("link id %d out of range", id)
	}
	return r.links[id], nil
}

// JointByID returns the joint with the given id.
func (r *Robot) JointByID(id int) (*Joint, error) {
	if id < 0 || id >= len(r.joints) {
		return nil, errors.Errorf("joint id %d out of range", id)
	}
	return r.joints[id], nil
}

// FixedLink returns the fixed link the model is rooted at, failing if there
// is not exactly one.
func (r *Robot) FixedLink() (*Link, error) {
	var fixed *Link
	for _, l := range r.links {
		if !l.fixed {
			continue
		}
		if fixed != nil {
			return nil, errors.Errorf("links %q and %q are both fixed", fixed.name, l.name)
		}
		fixed = l
	}
	if fixed == nil {
		return nil, errors.New("no fixed link")
	}
	return fixed, nil
}

// connected reports whether two links are already joined through any chain of
// joints. The model stays small enough that a breadth-first walk is fine.
func (r *Robot) connected(a, b int) bool {
	seen := make([]bool, len(r.links))
	queue := []int{a}
	seen[a] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == b {
			return true
		}
		for _, jid := range r.links[cur].joints {
			j := r.joints[jid]
			next := j.child
			if next == cur {
				next = j.parent
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// ForwardKinematics propagates center-of-mass poses and body twists outward
// from a root link. angles and velocities are indexed by joint id and must
// cover every joint; the returned slices are indexed by link id.
func (r *Robot) ForwardKinematics(
	angles, velocities []float64,
	rootName string,
	wTroot spatialmath.Pose,
	rootTwist spatialmath.Twist,
) ([]spatialmath.Pose, []spatialmath.Twist, error) {
	if len(angles) != len(r.joints) || len(velocities) != len(r.joints) {
		return nil, nil, errors.Errorf(
			"expected %d joint angles and velocities, got %d and %d",
			len(r.joints), len(angles), len(velocities))
	}
	root, err := r.Link(rootName)
	if err != nil {
		return nil, nil, err
	}

	poses := make([]spatialmath.Pose, len(r.links))
	twists := make([]spatialmath.Twist, len(r.links))
	seen := make([]bool, len(r.links))

	poses[root.id] = wTroot
	twists[root.id] = rootTwist
	seen[root.id] = true

	queue := []int{root.id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, jid := range r.links[cur].joints {
			j := r.joints[jid]
			q, qdot := angles[j.id], velocities[j.id]
			var next int
			if j.parent == cur {
				next = j.child
				if seen[next] {
					continue
				}
				poses[next] = j.ChildPoseFrom(poses[cur], q)
				twists[next] = j.ChildTwistFrom(twists[cur], q, qdot)
			} else {
				next = j.parent
				if seen[next] {
					continue
				}
				poses[next] = j.ParentPoseFrom(poses[cur], q)
				twists[next] = j.ParentTwistFrom(twists[cur], q, qdot)
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	for id, ok := range seen {
		if !ok {
			return nil, nil, errors.Errorf("link %q unreachable from %q", r.links[id].name, rootName)
		}
	}
	return poses, twists, nil
}
