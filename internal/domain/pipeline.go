package domain

// Stages is the fixed, ordered pipeline the remote agent reports
// progress against. The server's current_step field indexes into it.
var Stages = []string{
	"Initialize",
	"Analyze",
	"Reproduce",
	"Locate Files",
	"Generate Fix",
	"Verify",
}

// ClampStage bounds a raw step index to the pipeline range
func ClampStage(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(Stages) {
		return len(Stages) - 1
	}
	return i
}

// StageLabel returns the label for a step index
func StageLabel(i int) string {
	return Stages[ClampStage(i)]
}
