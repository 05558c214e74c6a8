package sensor

// FaceMeshModelSize is the number of landmark points in the full
// MediaPipe FaceMesh model (without iris refinement).
const FaceMeshModelSize = 468

// FaceMesh68Indices maps the standard 68-point facial landmark model
// onto MediaPipe FaceMesh indices, grouped by facial region.
var FaceMesh68Indices = []int{
	// Jawline (0-16): 17 points
	234, 127, 162, 21, 54, 103, 67, 109, 10, 338, 297, 332, 284, 251, 389, 356, 454,

	// Right eyebrow (17-21): 5 points
	70, 63, 105, 66, 107,

	// Left eyebrow (22-26): 5 points
	336, 296, 334, 293, 300,

	// Nose bridge (27-30): 4 points
	168, 6, 197, 195,

	// Nose bottom (31-35): 5 points
	5, 4, 1, 19, 94,

	// Right eye (36-41): 6 points
	33, 160, 158, 133, 153, 144,

	// Left eye (42-47): 6 points
	362, 385, 387, 263, 373, 380,

	// Outer lip (48-59): 12 points
	61, 185, 40, 39, 37, 0, 267, 269, 270, 409, 291, 375,

	// Inner lip (60-67): 8 points
	78, 191, 80, 81, 82, 13, 312, 311,
}

// Reduced10Indices is the bandwidth-reduced key landmark set used for
// avatar expression: nose tip, right eye, left eye, mouth right, mouth
// left, chin, forehead, upper lip, lower lip, right cheek.
var Reduced10Indices = []int{
	1,   // nose tip
	33,  // right eye
	263, // left eye
	291, // mouth right
	61,  // mouth left
	152, // chin
	10,  // forehead
	13,  // upper lip
	14,  // lower lip
	205, // right cheek
}
