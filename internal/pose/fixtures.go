package pose

import "math"

// RestingArmsLandmarks returns a full landmark set with both arms hanging
// straight down. Shoulder, elbow and wrist are collinear on each side, so the
// elbows are fully extended and the wrists lie along the upper arms.
func RestingArmsLandmarks() []Landmark {
	lm := make([]Landmark, NumLandmarks)

	// Head roughly centered above the shoulders
	lm[Nose] = Landmark{X: 0.55, Y: 0.30, Visibility: 0.99}
	lm[LeftEar] = Landmark{X: 0.52, Y: 0.29, Visibility: 0.95}
	lm[RightEar] = Landmark{X: 0.58, Y: 0.29, Visibility: 0.95}

	// Left arm straight down
	lm[LeftShoulder] = Landmark{X: 0.5, Y: 0.5, Visibility: 0.99}
	lm[LeftElbow] = Landmark{X: 0.5, Y: 0.6, Visibility: 0.98}
	lm[LeftWrist] = Landmark{X: 0.5, Y: 0.7, Visibility: 0.97}

	// Right arm straight down
	lm[RightShoulder] = Landmark{X: 0.6, Y: 0.5, Visibility: 0.99}
	lm[RightElbow] = Landmark{X: 0.6, Y: 0.6, Visibility: 0.98}
	lm[RightWrist] = Landmark{X: 0.6, Y: 0.7, Visibility: 0.97}

	// Hips below the shoulders
	lm[LeftHip] = Landmark{X: 0.51, Y: 0.85, Visibility: 0.9}
	lm[RightHip] = Landmark{X: 0.59, Y: 0.85, Visibility: 0.9}

	return lm
}

// RestingArmsSequence returns n frames of RestingArmsLandmarks spaced stepMs
// apart, starting at timestamp 0.
func RestingArmsSequence(n int, stepMs int64) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{
			Landmarks: RestingArmsLandmarks(),
			Timestamp: int64(i) * stepMs,
		}
	}
	return frames
}

// ElbowFlexionSequence returns n frames of a bilateral elbow curl: the upper
// arms stay vertical while the forearms rotate from straight down towards the
// shoulders and back. The right arm reaches only rightReach (0-1) of the left
// arm's flexion, which models an affected limb.
func ElbowFlexionSequence(n int, stepMs int64, rightReach float64) []Frame {
	const forearm = 0.1
	const maxFlexion = 140.0 // degrees of elbow flexion at the top of the curl

	frames := make([]Frame, n)
	for i := range frames {
		// Half-cosine profile: 0 at the ends, 1 at the middle of the sequence
		phase := 0.0
		if n > 1 {
			phase = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}

		lm := RestingArmsLandmarks()
		lm[LeftWrist] = forearmTip(lm[LeftElbow], forearm, phase*maxFlexion, -1)
		lm[RightWrist] = forearmTip(lm[RightElbow], forearm, phase*maxFlexion*rightReach, 1)

		frames[i] = Frame{Landmarks: lm, Timestamp: int64(i) * stepMs}
	}
	return frames
}

// forearmTip places a wrist at length from the elbow after flexing by deg.
// side is -1 for the left arm and 1 for the right arm so both forearms curl
// towards the body midline.
func forearmTip(elbow Landmark, length, deg, side float64) Landmark {
	rad := deg * math.Pi / 180
	return Landmark{
		X:          elbow.X - side*length*math.Sin(rad),
		Y:          elbow.Y + length*math.Cos(rad),
		Visibility: elbow.Visibility,
	}
}
