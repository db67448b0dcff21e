package robot

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/dynamics/spatialmath"
)

// worldLink is the reserved parent name that pins a joint's child to the
// world instead of adding a degree of freedom.
const worldLink = "world"

// ParseFile builds a Robot from a URDF or SDF file, dispatching on the file
// extension. modelName selects a model inside an SDF and is ignored for URDF.
func ParseFile(path, modelName string) (*Robot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading model file")
	}
	switch filepath.Ext(path) {
	case ".urdf":
		return ParseURDF(data)
	case ".sdf":
		return ParseSDF(data, modelName)
	default:
		return nil, errors.Errorf("unsupported model file extension %q", filepath.Ext(path))
	}
}

type xmlOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type xmlInertia struct {
	Ixx float64 `xml:"ixx,attr"`
	Ixy float64 `xml:"ixy,attr"`
	Ixz float64 `xml:"ixz,attr"`
	Iyy float64 `xml:"iyy,attr"`
	Iyz float64 `xml:"iyz,attr"`
	Izz float64 `xml:"izz,attr"`
}

type xmlInertial struct {
	Origin  xmlOrigin  `xml:"origin"`
	Mass    struct{ Value float64 `xml:"value,attr"` } `xml:"mass"`
	Inertia xmlInertia `xml:"inertia"`
}

type xmlLink struct {
	Name     string      `xml:"name,attr"`
	Inertial xmlInertial `xml:"inertial"`
}

type xmlJoint struct {
	Name   string    `xml:"name,attr"`
	Type   string    `xml:"type,attr"`
	Origin xmlOrigin `xml:"origin"`
	Parent struct{ Link string `xml:"link,attr"` } `xml:"parent"`
	Child  struct{ Link string `xml:"link,attr"` } `xml:"child"`
	Axis   struct{ XYZ string `xml:"xyz,attr"` }  `xml:"axis"`
	Limit  struct {
		Lower    float64 `xml:"lower,attr"`
		Upper    float64 `xml:"upper,attr"`
		Effort   float64 `xml:"effort,attr"`
		Velocity float64 `xml:"velocity,attr"`
	} `xml:"limit"`
	Dynamics struct{ Damping float64 `xml:"damping,attr"` } `xml:"dynamics"`
	// thread_pitch is an SDF concept; a few URDF exporters emit it too
	ThreadPitch float64 `xml:"thread_pitch"`
}

type xmlRobot struct {
	XMLName xml.Name   `xml:"robot"`
	Name    string     `xml:"name,attr"`
	Links   []xmlLink  `xml:"link"`
	Joints  []xmlJoint `xml:"joint"`
}

// ParseURDF builds a Robot from URDF bytes. URDF defines link frames through
// the joint chain, so link world poses are resolved by walking joints outward
// from the links that appear as nobody's child.
func ParseURDF(data []byte) (*Robot, error) {
	var parsed xmlRobot
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrap(err, "parsing URDF")
	}
	if len(parsed.Links) == 0 {
		return nil, errors.New("URDF has no links")
	}

	// resolve each link's world pose at rest from the joint origins
	wTl := map[string]spatialmath.Pose{}
	children := map[string]bool{}
	for _, j := range parsed.Joints {
		children[j.Child.Link] = true
	}
	for _, l := range parsed.Links {
		if !children[l.Name] {
			wTl[l.Name] = spatialmath.NewZeroPose()
		}
	}
	remaining := parsed.Joints
	for len(remaining) > 0 {
		progress := false
		var next []xmlJoint
		for _, j := range remaining {
			parentPose, ok := wTl[j.Parent.Link]
			if j.Parent.Link == worldLink {
				parentPose, ok = spatialmath.NewZeroPose(), true
			}
			if !ok {
				next = append(next, j)
				continue
			}
			origin, err := poseFromOrigin(j.Origin)
			if err != nil {
				return nil, errors.Wrapf(err, "joint %q origin", j.Name)
			}
			wTl[j.Child.Link] = spatialmath.Compose(parentPose, origin)
			progress = true
		}
		if !progress {
			return nil, errors.New("URDF joints do not form a tree rooted at a base link")
		}
		remaining = next
	}

	r := NewRobot(parsed.Name)
	for _, l := range parsed.Links {
		pose, ok := wTl[l.Name]
		if !ok {
			return nil, errors.Errorf("link %q has no resolvable pose", l.Name)
		}
		bMcom, err := poseFromOrigin(l.Inertial.Origin)
		if err != nil {
			return nil, errors.Wrapf(err, "link %q inertial origin", l.Name)
		}
		if _, err := r.AddLink(LinkParams{
			Name:    l.Name,
			Mass:    l.Inertial.Mass.Value,
			Inertia: inertiaMatrix(l.Inertial.Inertia),
			BMcom:   bMcom,
			WTl:     pose,
		}); err != nil {
			return nil, err
		}
	}
	for _, j := range parsed.Joints {
		if j.Parent.Link == worldLink {
			child, err := r.Link(j.Child.Link)
			if err != nil {
				return nil, errors.Wrapf(err, "joint %q", j.Name)
			}
			child.Fix(child.WTcom())
			continue
		}
		if err := addParsedJoint(r, j, wTl[j.Child.Link]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func addParsedJoint(r *Robot, j xmlJoint, wTj spatialmath.Pose) error {
	jtype, err := jointTypeFromString(j.Type)
	if err != nil {
		return errors.Wrapf(err, "joint %q", j.Name)
	}
	axis, err := parseVec3(j.Axis.XYZ, r3.Vector{Z: 1})
	if err != nil {
		return errors.Wrapf(err, "joint %q axis", j.Name)
	}
	_, err = r.AddJoint(JointParams{
		Name:        j.Name,
		Type:        jtype,
		Parent:      j.Parent.Link,
		Child:       j.Child.Link,
		WTj:         wTj,
		Axis:        axis,
		ThreadPitch: j.ThreadPitch,
		Limits: Limits{
			PositionLower: j.Limit.Lower,
			PositionUpper: j.Limit.Upper,
			Velocity:      j.Limit.Velocity,
			Torque:        j.Limit.Effort,
			Damping:       j.Dynamics.Damping,
		},
	})
	return err
}

func jointTypeFromString(s string) (JointType, error) {
	switch s {
	case "revolute", "continuous":
		return Revolute, nil
	case "prismatic":
		return Prismatic, nil
	case "screw":
		return Screw, nil
	default:
		return 0, errors.Errorf("unsupported joint type %q", s)
	}
}

type sdfPose struct {
	RelativeTo string `xml:"relative_to,attr"`
	Value      string `xml:",chardata"`
}

type sdfLink struct {
	Name     string  `xml:"name,attr"`
	Pose     sdfPose `xml:"pose"`
	Inertial struct {
		Pose    sdfPose `xml:"pose"`
		Mass    float64 `xml:"mass"`
		Inertia xmlInertia `xml:"inertia"`
	} `xml:"inertial"`
}

type sdfJoint struct {
	Name   string  `xml:"name,attr"`
	Type   string  `xml:"type,attr"`
	Pose   sdfPose `xml:"pose"`
	Parent string  `xml:"parent"`
	Child  string  `xml:"child"`
	Axis   struct {
		XYZ   string `xml:"xyz"`
		Limit struct {
			Lower    float64 `xml:"lower"`
			Upper    float64 `xml:"upper"`
			Effort   float64 `xml:"effort"`
			Velocity float64 `xml:"velocity"`
		} `xml:"limit"`
		Dynamics struct{ Damping float64 `xml:"damping"` } `xml:"dynamics"`
	} `xml:"axis"`
	ThreadPitch float64 `xml:"thread_pitch"`
}

type sdfModel struct {
	Name   string     `xml:"name,attr"`
	Links  []sdfLink  `xml:"link"`
	Joints []sdfJoint `xml:"joint"`
}

type sdfRoot struct {
	XMLName xml.Name   `xml:"sdf"`
	Models  []sdfModel `xml:"model"`
	Worlds  []struct {
		Models []sdfModel `xml:"model"`
	} `xml:"world"`
}

// ParseSDF builds a Robot from SDF bytes. SDF gives link poses in the model
// frame directly. The file may hold several models; modelName picks one, and
// an empty name is accepted only when the file holds exactly one model.
func ParseSDF(data []byte, modelName string) (*Robot, error) {
	var parsed sdfRoot
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrap(err, "parsing SDF")
	}
	models := parsed.Models
	for _, w := range parsed.Worlds {
		models = append(models, w.Models...)
	}
	var model *sdfModel
	switch {
	case modelName == "" && len(models) == 1:
		model = &models[0]
	case modelName == "":
		return nil, errors.Errorf("SDF holds %d models, a model name is required", len(models))
	default:
		for i := range models {
			if models[i].Name == modelName {
				model = &models[i]
				break
			}
		}
	}
	if model == nil {
		return nil, errors.Errorf("no model named %q in SDF", modelName)
	}

	r := NewRobot(model.Name)
	for _, l := range model.Links {
		if l.Pose.RelativeTo != "" && l.Pose.RelativeTo != worldLink {
			return nil, errors.Errorf("link %q pose is relative to unsupported frame %q", l.Name, l.Pose.RelativeTo)
		}
		pose, err := poseFromSixTuple(l.Pose.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "link %q pose", l.Name)
		}
		bMcom, err := poseFromSixTuple(l.Inertial.Pose.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "link %q inertial pose", l.Name)
		}
		if _, err := r.AddLink(LinkParams{
			Name:    l.Name,
			Mass:    l.Inertial.Mass,
			Inertia: inertiaMatrix(l.Inertial.Inertia),
			BMcom:   bMcom,
			WTl:     pose,
		}); err != nil {
			return nil, err
		}
	}
	for _, j := range model.Joints {
		if j.Parent == worldLink {
			child, err := r.Link(j.Child)
			if err != nil {
				return nil, errors.Wrapf(err, "joint %q", j.Name)
			}
			child.Fix(child.WTcom())
			continue
		}
		if j.Pose.RelativeTo != "" && j.Pose.RelativeTo != j.Child {
			return nil, errors.Errorf("joint %q pose is relative to unsupported frame %q", j.Name, j.Pose.RelativeTo)
		}
		jtype, err := jointTypeFromString(j.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", j.Name)
		}
		child, err := r.Link(j.Child)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", j.Name)
		}
		// the joint pose is given relative to the child link frame
		rel, err := poseFromSixTuple(j.Pose.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q pose", j.Name)
		}
		axis, err := parseVec3(j.Axis.XYZ, r3.Vector{Z: 1})
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q axis", j.Name)
		}
		if _, err := r.AddJoint(JointParams{
			Name:        j.Name,
			Type:        jtype,
			Parent:      j.Parent,
			Child:       j.Child,
			WTj:         spatialmath.Compose(child.WTl(), rel),
			Axis:        axis,
			ThreadPitch: j.ThreadPitch,
			Limits: Limits{
				PositionLower: j.Axis.Limit.Lower,
				PositionUpper: j.Axis.Limit.Upper,
				Velocity:      j.Axis.Limit.Velocity,
				Torque:        j.Axis.Limit.Effort,
				Damping:       j.Axis.Dynamics.Damping,
			},
		}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func inertiaMatrix(i xmlInertia) mgl64.Mat3 {
	// column-major, symmetric
	return mgl64.Mat3{
		i.Ixx, i.Ixy, i.Ixz,
		i.Ixy, i.Iyy, i.Iyz,
		i.Ixz, i.Iyz, i.Izz,
	}
}

func poseFromOrigin(o xmlOrigin) (spatialmath.Pose, error) {
	xyz, err := parseVec3(o.XYZ, r3.Vector{})
	if err != nil {
		return spatialmath.Pose{}, err
	}
	rpy, err := parseVec3(o.RPY, r3.Vector{})
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return spatialmath.NewPose(rpyToQuat(rpy), xyz), nil
}

// poseFromSixTuple parses the SDF "x y z roll pitch yaw" form.
func poseFromSixTuple(s string) (spatialmath.Pose, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return spatialmath.NewZeroPose(), nil
	}
	if len(fields) != 6 {
		return spatialmath.Pose{}, errors.Errorf("expected 6 pose values, got %d", len(fields))
	}
	vals := make([]float64, 6)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return spatialmath.Pose{}, errors.Wrapf(err, "pose value %q", f)
		}
		vals[i] = v
	}
	return spatialmath.NewPose(
		rpyToQuat(r3.Vector{X: vals[3], Y: vals[4], Z: vals[5]}),
		r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
	), nil
}

func parseVec3(s string, def r3.Vector) (r3.Vector, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return def, nil
	}
	if len(fields) != 3 {
		return r3.Vector{}, errors.Errorf("expected 3 values, got %d", len(fields))
	}
	vals := make([]float64, 3)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vector{}, errors.Wrapf(err, "value %q", f)
		}
		vals[i] = v
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// rpyToQuat converts fixed-axis roll/pitch/yaw to a rotation quaternion,
// applying roll about x first, then pitch, then yaw.
func rpyToQuat(rpy r3.Vector) quat.Number {
	q := mgl64.AnglesToQuat(rpy.Z, rpy.Y, rpy.X, mgl64.ZYX)
	return quat.Number{Real: q.W, Imag: q.X(), Jmag: q.Y(), Kmag: q.Z()}
}
