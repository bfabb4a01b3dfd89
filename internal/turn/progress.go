package turn

// Stage names a step of turn processing reported to a progress callback.
type Stage string

const (
	StageInterpreting Stage = "interpreting"
	StageExecuting    Stage = "executing"
	StageGenerating   Stage = "generating"
	StageTicking      Stage = "ticking"
	StageDone         Stage = "done"
)

// Progress is one update delivered while a turn runs.
type Progress struct {
	StoryID string `json:"story_id"`
	Turn    int    `json:"turn"`
	Stage   Stage  `json:"stage"`
	Detail  string `json:"detail,omitempty"`
}

// ProgressFunc receives progress updates synchronously on the turn's
// goroutine. It must not start another turn or dilemma response for the
// same story.
type ProgressFunc func(Progress)
