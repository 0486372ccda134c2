package health

import "github.com/okian/pulse/internal/domain/model"

// InputFor projects stored records onto the engine's input shape.
func InputFor(p model.Project, feedbacks []model.Feedback, checkIns []model.CheckIn, risks []model.Risk) Input {
	in := Input{
		Timeline:  Timeline{Start: p.StartDate, End: p.EndDate},
		Feedbacks: make([]Feedback, len(feedbacks)),
		CheckIns:  make([]CheckIn, len(checkIns)),
		Risks:     make([]Risk, len(risks)),
	}
	for i, f := range feedbacks {
		in.Feedbacks[i] = Feedback{SatisfactionRating: f.SatisfactionRating, IssueFlagged: f.IssueFlagged, CreatedAt: f.CreatedAt}
	}
	for i, c := range checkIns {
		in.CheckIns[i] = CheckIn{ConfidenceLevel: c.ConfidenceLevel, CompletionPercentage: c.CompletionPercentage, CreatedAt: c.CreatedAt}
	}
	for i, r := range risks {
		in.Risks[i] = Risk{Severity: r.Severity, Status: r.Status}
	}
	return in
}
