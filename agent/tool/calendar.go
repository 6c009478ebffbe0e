package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/norasett/attache/agent/contract"
)

const (
	ToolCreateCalendarEvent  = "create_calendar_event"
	ToolSearchCalendarEvents = "search_calendar_events"
	ToolGetCalendarEvent     = "get_calendar_event"
	ToolUpdateCalendarEvent  = "update_calendar_event"
	ToolDeleteCalendarEvent  = "delete_calendar_event"
	ToolCheckAvailability    = "check_availability"
)

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
}

type EventInput struct {
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	Attendees   []string
}

// EventPatch carries only the fields an update names; nil time pointers mean
// "leave unchanged".
type EventPatch struct {
	Title       string
	Start       *time.Time
	End         *time.Time
	Description string
	Location    string
}

type EventOutput struct {
	EventID string `json:"event_id"`
}

type StatusOutput struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Who   string    `json:"who,omitempty"`
}

// CalendarService is the external calendar collaborator boundary.
type CalendarService interface {
	CreateEvent(ctx context.Context, in EventInput) (string, error)
	SearchEvents(ctx context.Context, query string, window TimeRange, maxResults int) ([]Event, error)
	GetEvent(ctx context.Context, eventID string) (Event, error)
	UpdateEvent(ctx context.Context, eventID string, patch EventPatch) error
	DeleteEvent(ctx context.Context, eventID string) error
	FreeBusy(ctx context.Context, window TimeRange, participants []string) ([]BusyInterval, error)
}

func calendarSpecs() []Spec {
	return []Spec{
		{
			Name:   ToolCreateCalendarEvent,
			Desc:   "Create a calendar event with title, start and end time, and optional details.",
			Effect: EffectMutating,
			Params: []Param{
				{Name: "summary", Type: schema.String, Desc: "Event title", Required: true},
				{Name: "start_time", Type: schema.String, Desc: "Start time, RFC3339", Required: true},
				{Name: "end_time", Type: schema.String, Desc: "End time, RFC3339", Required: true},
				{Name: "description", Type: schema.String, Desc: "Event description"},
				{Name: "location", Type: schema.String, Desc: "Event location"},
				{Name: "attendees", Type: schema.Array, Elem: schema.String, Desc: "Attendee email addresses"},
			},
		},
		{
			Name:   ToolSearchCalendarEvents,
			Desc:   "Search events by free text and/or a time range.",
			Effect: EffectReadOnly,
			Params: []Param{
				{Name: "query", Type: schema.String, Desc: "Free text to match against event titles"},
				{Name: "start_time", Type: schema.String, Desc: "Range start, RFC3339"},
				{Name: "end_time", Type: schema.String, Desc: "Range end, RFC3339"},
				{Name: "max_results", Type: schema.Integer, Desc: "Maximum results to return (default 10)"},
			},
		},
		{
			Name:   ToolGetCalendarEvent,
			Desc:   "Fetch the full details of a single event by ID.",
			Effect: EffectReadOnly,
			Params: []Param{
				{Name: "event_id", Type: schema.String, Desc: "ID of the event to fetch", Required: true},
			},
		},
		{
			Name:   ToolUpdateCalendarEvent,
			Desc:   "Update fields of an existing event by ID.",
			Effect: EffectMutating,
			Params: []Param{
				{Name: "event_id", Type: schema.String, Desc: "ID of the event to update", Required: true},
				{Name: "summary", Type: schema.String, Desc: "New event title"},
				{Name: "start_time", Type: schema.String, Desc: "New start time, RFC3339"},
				{Name: "end_time", Type: schema.String, Desc: "New end time, RFC3339"},
				{Name: "description", Type: schema.String, Desc: "New description"},
				{Name: "location", Type: schema.String, Desc: "New location"},
			},
		},
		{
			Name:   ToolDeleteCalendarEvent,
			Desc:   "Delete an event by ID.",
			Effect: EffectMutating,
			Params: []Param{
				{Name: "event_id", Type: schema.String, Desc: "ID of the event to delete", Required: true},
			},
		},
		{
			Name:   ToolCheckAvailability,
			Desc:   "Return busy intervals within a time range for the given participants.",
			Effect: EffectReadOnly,
			Params: []Param{
				{Name: "start_time", Type: schema.String, Desc: "Range start, RFC3339", Required: true},
				{Name: "end_time", Type: schema.String, Desc: "Range end, RFC3339", Required: true},
				{Name: "participants", Type: schema.Array, Elem: schema.String, Desc: "Participant email addresses"},
			},
		},
	}
}

func NewCalendarExecutor(svc CalendarService) Executor {
	return func(ctx context.Context, call contractx.ToolCall) contractx.ToolResult {
		if svc == nil {
			return contractx.ErrorResult(call, "calendar service is not configured")
		}

		switch call.Name {
		case ToolCreateCalendarEvent:
			return calendarCreate(ctx, svc, call)
		case ToolSearchCalendarEvents:
			return calendarSearch(ctx, svc, call)
		case ToolGetCalendarEvent:
			return calendarGet(ctx, svc, call)
		case ToolUpdateCalendarEvent:
			return calendarUpdate(ctx, svc, call)
		case ToolDeleteCalendarEvent:
			return calendarDelete(ctx, svc, call)
		case ToolCheckAvailability:
			return calendarFreeBusy(ctx, svc, call)
		default:
			return contractx.ErrorResult(call, fmt.Sprintf("unknown calendar tool %q", call.Name))
		}
	}
}

func calendarCreate(ctx context.Context, svc CalendarService, call contractx.ToolCall) contractx.ToolResult {
	title, err := stringArg(call.Args, "summary", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	start, err := timeArg(call.Args, "start_time", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	end, err := timeArg(call.Args, "end_time", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	if !end.After(start) {
		return contractx.ErrorResult(call, "end_time must be after start_time")
	}
	description, err := stringArg(call.Args, "description", false)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	location, err := stringArg(call.Args, "location", false)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	attendees, err := stringSliceArg(call.Args, "attendees")
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	eventID, err := svc.CreateEvent(ctx, EventInput{
		Title:       title,
		Start:       start,
		End:         end,
		Description: description,
		Location:    location,
		Attendees:   attendees,
	})
	if err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("create event: %v", err))
	}
	return contractx.OKResult(call, EventOutput{EventID: eventID})
}

func calendarSearch(ctx context.Context, svc CalendarService, call contractx.ToolCall) contractx.ToolResult {
	query, err := stringArg(call.Args, "query", false)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	start, err := timeArg(call.Args, "start_time", false)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	end, err := timeArg(call.Args, "end_time", false)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	if query == "" && start.IsZero() && end.IsZero() {
		return contractx.ErrorResult(call, "provide a query and/or a time range")
	}
	maxResults, err := intArg(call.Args, "max_results", 10)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	events, err := svc.SearchEvents(ctx, query, TimeRange{Start: start, End: end}, maxResults)
	if err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("search events: %v", err))
	}
	return contractx.OKResult(call, events)
}

func calendarGet(ctx context.Context, svc CalendarService, call contractx.ToolCall) contractx.ToolResult {
	eventID, err := stringArg(call.Args, "event_id", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	event, err := svc.GetEvent(ctx, eventID)
	if err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("get event: %v", err))
	}
	return contractx.OKResult(call, event)
}

func calendarUpdate(ctx context.Context, svc CalendarService, call contractx.ToolCall) contractx.ToolResult {
	eventID, err := stringArg(call.Args, "event_id", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	patch := EventPatch{}
	if patch.Title, err = stringArg(call.Args, "summary", false); err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	if patch.Description, err = stringArg(call.Args, "description", false); err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	if patch.Location, err = stringArg(call.Args, "location", false); err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	if start, err := timeArg(call.Args, "start_time", false); err != nil {
		return contractx.ErrorResult(call, err.Error())
	} else if !start.IsZero() {
		patch.Start = &start
	}
	if end, err := timeArg(call.Args, "end_time", false); err != nil {
		return contractx.ErrorResult(call, err.Error())
	} else if !end.IsZero() {
		patch.End = &end
	}

	if err := svc.UpdateEvent(ctx, eventID, patch); err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("update event: %v", err))
	}
	return contractx.OKResult(call, StatusOutput{EventID: eventID, Status: "updated"})
}

func calendarDelete(ctx context.Context, svc CalendarService, call contractx.ToolCall) contractx.ToolResult {
	eventID, err := stringArg(call.Args, "event_id", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	if err := svc.DeleteEvent(ctx, eventID); err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("delete event: %v", err))
	}
	return contractx.OKResult(call, StatusOutput{EventID: eventID, Status: "deleted"})
}

func calendarFreeBusy(ctx context.Context, svc CalendarService, call contractx.ToolCall) contractx.ToolResult {
	start, err := timeArg(call.Args, "start_time", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	end, err := timeArg(call.Args, "end_time", true)
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}
	if !end.After(start) {
		return contractx.ErrorResult(call, "end_time must be after start_time")
	}
	participants, err := stringSliceArg(call.Args, "participants")
	if err != nil {
		return contractx.ErrorResult(call, err.Error())
	}

	busy, err := svc.FreeBusy(ctx, TimeRange{Start: start, End: end}, participants)
	if err != nil {
		return contractx.ErrorResult(call, fmt.Sprintf("check availability: %v", err))
	}
	return contractx.OKResult(call, busy)
}
