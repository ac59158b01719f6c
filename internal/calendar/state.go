package calendar

// CellState is how a slot is rendered for a viewer.
type CellState int

const (
	StateAvailable CellState = iota
	StateOccupiedByOther
	StateOwnAppointment
	StateForeignEngineerAppointment
)

func (s CellState) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateOwnAppointment:
		return "own"
	case StateForeignEngineerAppointment:
		return "foreign_engineer"
	default:
		return "occupied"
	}
}

func (s CellState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Action is what activating a cell does.
type Action int

const (
	ActionNone Action = iota
	ActionSchedule
	ActionView
)

func (a Action) String() string {
	switch a {
	case ActionSchedule:
		return "schedule"
	case ActionView:
		return "view"
	default:
		return "none"
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Resolution pairs a state with its activation.
type Resolution struct {
	State    CellState
	Activate Action
}

// ResolveState classifies slot for viewer. It is a pure function of its
// arguments.
func ResolveState(slot TimeSlot, viewer Viewer) Resolution {
	switch viewer.Role {
	case RoleCompany:
		switch {
		case slot.IsAvailable:
			return Resolution{StateAvailable, ActionSchedule}
		case slot.IsOwnAppointment:
			return Resolution{StateOwnAppointment, ActionView}
		default:
			return Resolution{StateOccupiedByOther, ActionNone}
		}
	case RoleEngineer:
		switch {
		case slot.IsOwnAppointment:
			return Resolution{StateOwnAppointment, ActionView}
		case !slot.IsAvailable && slot.record != nil && slot.record.Unassigned():
			// unassigned requests are open for engineers to inspect
			return Resolution{StateOccupiedByOther, ActionView}
		default:
			return Resolution{StateOccupiedByOther, ActionNone}
		}
	case RoleAdmin:
		if slot.IsAvailable {
			return Resolution{StateAvailable, ActionView}
		}
		return Resolution{StateForeignEngineerAppointment, ActionView}
	default:
		return Resolution{StateOccupiedByOther, ActionNone}
	}
}

// Cell is the render-ready form of a slot. Identity fields are filled only
// when the viewer may see them; an occupied cell for a company carries
// nothing but its time range.
type Cell struct {
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	State           CellState `json:"state"`
	Action          Action    `json:"action"`
	AppointmentID   string    `json:"appointment_id,omitempty"`
	AppointmentType string    `json:"appointment_type,omitempty"`
	Description     string    `json:"description,omitempty"`
	Status          string    `json:"status,omitempty"`
	Color           string    `json:"color,omitempty"`
	EngineerID      string    `json:"engineer_id,omitempty"`
	CompanyID       string    `json:"company_id,omitempty"`
}

// RenderOptions tunes cell rendering.
type RenderOptions struct {
	// DisplayCount is how many cells a grid day shows before "+N more".
	DisplayCount int
	// TypeColors maps appointment types to display colors.
	TypeColors map[string]string
}

const DefaultDisplayCount = 2

func (o RenderOptions) displayCount() int {
	if o.DisplayCount <= 0 {
		return DefaultDisplayCount
	}
	return o.DisplayCount
}

// RenderCell resolves slot for viewer and copies only the fields that state
// is allowed to expose.
func RenderCell(slot TimeSlot, viewer Viewer, opts RenderOptions) Cell {
	res := ResolveState(slot, viewer)
	c := Cell{
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		State:     res.State,
		Action:    res.Activate,
	}
	rec := slot.record
	if rec == nil {
		return c
	}

	switch {
	case res.State == StateOwnAppointment, res.State == StateForeignEngineerAppointment:
		c.AppointmentID = rec.ID
		c.AppointmentType = rec.AppointmentType
		c.Description = rec.Description
		c.Status = rec.Status
		c.Color = opts.TypeColors[rec.AppointmentType]
		c.EngineerID = rec.EngineerID
		c.CompanyID = rec.CompanyID
	case res.State == StateOccupiedByOther && res.Activate == ActionView:
		// unassigned request seen by an engineer: no company identity
		c.AppointmentID = rec.ID
		c.AppointmentType = rec.AppointmentType
		c.Description = rec.Description
		c.Status = rec.Status
	}
	return c
}

// DayCell is one day of the month grid.
type DayCell struct {
	Day   Day    `json:"day"`
	Cells []Cell `json:"cells"`
	More  int    `json:"more"`
	Total int    `json:"total"`
}

// RenderDay renders the grid cell for a day, truncated to the display count.
// The hidden remainder is reported in More, never dropped.
func RenderDay(day Day, slots []TimeSlot, viewer Viewer, opts RenderOptions) DayCell {
	full := RenderFull(slots, viewer, opts)
	n := opts.displayCount()
	dc := DayCell{Day: day, Total: len(full)}
	if len(full) > n {
		dc.Cells = full[:n:n]
		dc.More = len(full) - n
	} else {
		dc.Cells = full
	}
	return dc
}

// RenderFull renders every slot of a day, as the day modal shows them.
func RenderFull(slots []TimeSlot, viewer Viewer, opts RenderOptions) []Cell {
	out := make([]Cell, 0, len(slots))
	for _, s := range slots {
		out = append(out, RenderCell(s, viewer, opts))
	}
	return out
}
