package lifecycle

import "TalentPipe-backend/internal/model"

// Action is a job status change requested by a user
type Action string

// Job status actions
const (
	ActionPublish Action = "publish"
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionClose   Action = "close"
)

type transition struct {
	from model.JobStatus
	to   model.JobStatus
}

// transitions is the whole job status machine. DRAFT and CLOSED cannot be
// entered again once left.
var transitions = map[Action]transition{
	ActionPublish: {from: model.JobStatusDraft, to: model.JobStatusPublished},
	ActionPause:   {from: model.JobStatusPublished, to: model.JobStatusPaused},
	ActionResume:  {from: model.JobStatusPaused, to: model.JobStatusPublished},
	ActionClose:   {from: model.JobStatusPublished, to: model.JobStatusClosed},
}

// Next returns the status action leads to from current, and whether the
// action is allowed at all
func Next(current model.JobStatus, action Action) (model.JobStatus, bool) {
	t, ok := transitions[action]
	if !ok || t.from != current {
		return current, false
	}
	return t.to, true
}

// CanTransition reports whether some action moves a job from one status to another
func CanTransition(from, to model.JobStatus) bool {
	for _, t := range transitions {
		if t.from == from && t.to == to {
			return true
		}
	}
	return false
}

// Required returns the status action can be applied from
func (a Action) Required() (model.JobStatus, bool) {
	t, ok := transitions[a]
	return t.from, ok
}
