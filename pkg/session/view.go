package session

import (
	"math"

	"github.com/menta2k/drawing-converter/pkg/types"
	"github.com/menta2k/drawing-converter/pkg/units"
)

// AnnotationView is an annotation as presented in the dimension list.
type AnnotationView struct {
	types.Annotation
	LowConfidence bool `json:"low_confidence"`
	Editable      bool `json:"editable"`
}

// SelectionView is the open editor with a live conversion preview.
type SelectionView struct {
	Selection
	Preview string `json:"preview"`
}

// View is the serialisable form of a session.
type View struct {
	ID           string           `json:"id"`
	HasImage     bool             `json:"has_image"`
	HasProcessed bool             `json:"has_processed"`
	Processing   bool             `json:"processing"`
	Status       string           `json:"status"`
	Zoom         float64          `json:"zoom"`
	ZoomPercent  int              `json:"zoom_percent"`
	EditPolicy   string           `json:"edit_policy"`
	Selection    *SelectionView   `json:"selection,omitempty"`
	Annotations  []AnnotationView `json:"annotations"`
}

// View returns the current view of the session.
func (s *Session) View() View {
	st := s.State()
	v := View{
		ID:           s.ID,
		HasImage:     st.Source != nil,
		HasProcessed: st.Processed != nil,
		Processing:   st.Processing,
		Status:       st.Status,
		Zoom:         st.Zoom,
		ZoomPercent:  int(math.Round(st.Zoom * 100)),
		EditPolicy:   s.opts.Policy.String(),
		Annotations:  []AnnotationView{},
	}
	if st.Selection != nil {
		v.Selection = &SelectionView{Selection: *st.Selection, Preview: units.ToMetric(st.Selection.Draft)}
	}
	for _, a := range st.Annotations.All() {
		v.Annotations = append(v.Annotations, AnnotationView{
			Annotation:    a,
			LowConfidence: a.LowConfidence(s.opts.Threshold),
			Editable:      Selectable(a, s.opts.Policy, s.opts.Threshold),
		})
	}
	return v
}
