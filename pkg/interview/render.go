package interview

// View is the visibility of each widget affordance for a phase.
type View struct {
	Phase          string `json:"phase"`
	ShowQuestion   bool   `json:"show_question"`
	ShowTimer      bool   `json:"show_timer"`
	ShowVisualizer bool   `json:"show_visualizer"`
	ShowProcessing bool   `json:"show_processing"`
	ShowResponse   bool   `json:"show_response"`
	ShowEnd        bool   `json:"show_end"`
}

// Render projects a phase onto the widget. It has no side effects.
func Render(p Phase) View {
	v := View{Phase: p.String(), ShowQuestion: true}
	switch p {
	case PhaseBetweenRounds:
		v.ShowResponse = true
	case PhaseInRound:
		v.ShowTimer = true
		v.ShowVisualizer = true
	case PhaseProcessing:
		v.ShowProcessing = true
	case PhaseEnd:
		v.ShowQuestion = false
		v.ShowEnd = true
	}
	return v
}

// TimerView is the countdown as displayed.
type TimerView struct {
	Remaining int    `json:"remaining"`
	Text      string `json:"text"`
	Class     string `json:"class"`
}

// RenderTimer projects remaining seconds onto the countdown display.
func RenderTimer(remaining int) TimerView {
	return TimerView{
		Remaining: remaining,
		Text:      TimerText(remaining),
		Class:     BandFor(remaining).Class(),
	}
}
