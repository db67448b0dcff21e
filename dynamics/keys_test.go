package dynamics

import (
	"testing"

	"go.viam.com/test"
)

func TestKeyPacking(t *testing.T) {
	k := Key(KindJointVel, 12, 345)
	test.That(t, KindOf(k), test.ShouldEqual, KindJointVel)
	test.That(t, IDOf(k), test.ShouldEqual, 12)
	test.That(t, TimestepOf(k), test.ShouldEqual, 345)
}

func TestKeysDistinct(t *testing.T) {
	seen := map[uint64]bool{}
	for _, kind := range []Kind{
		KindPose, KindTwist, KindTwistAccel, KindJointAngle, KindJointVel,
		KindJointAccel, KindTorque, KindWrench, KindContactWrench,
	} {
		for id := 0; id < 3; id++ {
			for ts := 0; ts < 3; ts++ {
				k := uint64(Key(kind, id, ts))
				test.That(t, seen[k], test.ShouldBeFalse)
				seen[k] = true
			}
		}
	}
}

func TestFormatKey(t *testing.T) {
	test.That(t, FormatKey(JointAngleKey(0, 1)), test.ShouldEqual, "q(0)1")
	test.That(t, FormatKey(PoseKey(3, 7)), test.ShouldEqual, "p(3)7")
	test.That(t, FormatKey(WrenchKey(2, 0)), test.ShouldEqual, "F(2)0")
	test.That(t, FormatKey(PhaseDurationKey(4)), test.ShouldEqual, "dt(4)0")
}
