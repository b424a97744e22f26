// Package pose provides body pose landmark types for arm motion analysis.
package pose

// Pose landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// MinLandmarks is the smallest landmark count that still carries both arms
// (indices up to RightWrist).
const MinLandmarks = RightWrist + 1

// Landmark is a single pose landmark in normalized image coordinates.
// Only X and Y are used for 2D arm analysis.
type Landmark struct {
	X          float64 `json:"x" msgpack:"x"`
	Y          float64 `json:"y" msgpack:"y"`
	Z          float64 `json:"z,omitempty" msgpack:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty" msgpack:"visibility,omitempty"`
}

// Frame is one captured pose with its capture time in milliseconds.
// An empty Landmarks slice means no person was detected in the frame.
type Frame struct {
	Landmarks []Landmark `json:"landmarks" msgpack:"landmarks"`
	Timestamp int64      `json:"timestamp" msgpack:"timestamp"`
}

// Empty reports whether the frame carries no landmarks.
func (f Frame) Empty() bool {
	return len(f.Landmarks) == 0
}

// Complete reports whether every arm landmark index is present.
func (f Frame) Complete() bool {
	return len(f.Landmarks) >= MinLandmarks
}

// XY returns the 2D position of landmark i. The caller must check Complete first.
func (f Frame) XY(i int) (float64, float64) {
	lm := f.Landmarks[i]
	return lm.X, lm.Y
}
