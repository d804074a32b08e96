package replay

import "fmt"

type ReplayError struct {
	StepIndex int32          `json:"step_index"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	Expected  *ExpectedState `json:"expected,omitempty"`
}

// ExpectedState is what the engine computed at the failing step.
type ExpectedState struct {
	PlayerOrder int  `json:"player_order"`
	ScoreBefore int  `json:"score_before"`
	ScoreAfter  int  `json:"score_after"`
	IsBust      bool `json:"is_bust"`
	IsFinish    bool `json:"is_finish"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}
