package phase

import (
	"errors"
	"fmt"
)

// Phase names of the default workbook.
const (
	Orientation     = "orientation"
	Instructional   = "instructional"
	Clinical        = "clinical"
	FieldInternship = "field_internship"
	Capstone        = "capstone"
)

// ErrInvalidPhaseMap the phase configuration is inconsistent. Startup must stop.
var ErrInvalidPhaseMap = errors.New("invalid phase map")

// FormSlot is one form kind inside a phase and how many instances are required.
// Slots that allow addenda accept extra numbered copies beyond Required.
type FormSlot struct {
	Type          FormType `json:"form_type"`
	Required      int      `json:"required"`
	AllowsAddenda bool     `json:"allows_addenda"`
}

// IsAddendum reports whether formNumber is an addendum copy of this slot.
func (s FormSlot) IsAddendum(formNumber int) bool {
	return s.AllowsAddenda && formNumber > s.Required
}

// Definition is the static description of one phase.
type Definition struct {
	Name       string     `json:"name"`
	Title      string     `json:"title"`
	Forms      []FormSlot `json:"forms"`
	TotalItems int        `json:"total_items"`
}

// Map resolves form kinds to phases. It is immutable after New.
type Map struct {
	phases     []Definition
	byName     map[string]int
	byForm     map[FormType]int
	slots      map[FormType]FormSlot
	totalForms int
}

// New validates defs and builds a Map:
//   - phase names are non-empty and unique
//   - every slot names a known form kind with a non-negative count
//   - every known form kind appears in exactly one phase
//   - each phase's declared TotalItems equals the sum of its required counts
func New(defs []Definition) (*Map, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no phases defined", ErrInvalidPhaseMap)
	}

	m := &Map{
		phases: make([]Definition, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
		byForm: make(map[FormType]int),
		slots:  make(map[FormType]FormSlot),
	}

	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: phase #%d has no name", ErrInvalidPhaseMap, i+1)
		}
		if _, dup := m.byName[def.Name]; dup {
			return nil, fmt.Errorf("%w: phase %q defined twice", ErrInvalidPhaseMap, def.Name)
		}

		sum := 0
		for _, slot := range def.Forms {
			if !slot.Type.Valid() {
				return nil, fmt.Errorf("%w: phase %q lists unknown form type %q", ErrInvalidPhaseMap, def.Name, slot.Type)
			}
			if slot.Required < 0 {
				return nil, fmt.Errorf("%w: phase %q form %q has negative count", ErrInvalidPhaseMap, def.Name, slot.Type)
			}
			if prev, dup := m.byForm[slot.Type]; dup {
				return nil, fmt.Errorf("%w: form type %q mapped to both %q and %q",
					ErrInvalidPhaseMap, slot.Type, defs[prev].Name, def.Name)
			}
			m.byForm[slot.Type] = i
			m.slots[slot.Type] = slot
			sum += slot.Required
		}
		if sum != def.TotalItems {
			return nil, fmt.Errorf("%w: phase %q declares %d items but its forms require %d",
				ErrInvalidPhaseMap, def.Name, def.TotalItems, sum)
		}

		cp := def
		cp.Forms = append([]FormSlot(nil), def.Forms...)
		m.phases = append(m.phases, cp)
		m.byName[def.Name] = i
		m.totalForms += def.TotalItems
	}

	for _, ft := range allFormTypes {
		if _, ok := m.byForm[ft]; !ok {
			return nil, fmt.Errorf("%w: form type %q is not assigned to any phase", ErrInvalidPhaseMap, ft)
		}
	}

	return m, nil
}

// MustNew is New that panics; for static tables only.
func MustNew(defs []Definition) *Map {
	m, err := New(defs)
	if err != nil {
		panic(err)
	}
	return m
}

// Phases returns the definitions in workbook order.
func (m *Map) Phases() []Definition {
	out := make([]Definition, len(m.phases))
	copy(out, m.phases)
	return out
}

// Phase looks a definition up by name.
func (m *Map) Phase(name string) (Definition, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Definition{}, false
	}
	return m.phases[i], true
}

// Index is the position of the phase in workbook order, -1 if unknown.
func (m *Map) Index(name string) int {
	i, ok := m.byName[name]
	if !ok {
		return -1
	}
	return i
}

// PhaseOf returns the phase a form kind belongs to.
func (m *Map) PhaseOf(t FormType) (string, bool) {
	i, ok := m.byForm[t]
	if !ok {
		return "", false
	}
	return m.phases[i].Name, true
}

// Slot returns the slot configuration of a form kind.
func (m *Map) Slot(t FormType) (FormSlot, bool) {
	s, ok := m.slots[t]
	return s, ok
}

// TotalForms is the global total_form_count.
func (m *Map) TotalForms() int { return m.totalForms }

// TotalPhases is the number of phases.
func (m *Map) TotalPhases() int { return len(m.phases) }

// DefaultDefinitions is the paramedic field-training workbook.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:  Orientation,
			Title: "Orientation & declarations",
			Forms: []FormSlot{
				{Type: FormStudentDeclaration, Required: 1},
				{Type: FormPreceptorAgreement, Required: 1},
			},
			TotalItems: 2,
		},
		{
			Name:  Instructional,
			Title: "Instructional case summaries",
			Forms: []FormSlot{
				{Type: FormInstructionalCaseSummary, Required: 6},
			},
			TotalItems: 6,
		},
		{
			Name:  Clinical,
			Title: "Clinical shifts",
			Forms: []FormSlot{
				{Type: FormShiftLog, Required: 10, AllowsAddenda: true},
				{Type: FormFormativeEvaluation, Required: 5},
			},
			TotalItems: 15,
		},
		{
			Name:  FieldInternship,
			Title: "Field internship",
			Forms: []FormSlot{
				{Type: FormCaseSummary, Required: 8},
				{Type: FormSummativeEvaluation, Required: 3},
			},
			TotalItems: 11,
		},
		{
			Name:  Capstone,
			Title: "Capstone & sign-off",
			Forms: []FormSlot{
				{Type: FormCapstoneDeclaration, Required: 1},
				{Type: FormCoordinatorSignoff, Required: 1},
			},
			TotalItems: 2,
		},
	}
}

// Default builds the default workbook map.
func Default() *Map {
	return MustNew(DefaultDefinitions())
}
