package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalGmail is an in-process GmailService used for local runs and tests.
type LocalGmail struct {
	mu       sync.Mutex
	drafts   map[string]EmailContent
	messages map[string]EmailContent
	labels   map[string][]string
}

func NewLocalGmail() *LocalGmail {
	return &LocalGmail{
		drafts:   make(map[string]EmailContent),
		messages: make(map[string]EmailContent),
		labels:   make(map[string][]string),
	}
}

// Seed adds a message to the mailbox and returns its id.
func (g *LocalGmail) Seed(subject, sender, body string, ts time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := uuid.NewString()
	g.messages[id] = EmailContent{Subject: subject, Sender: sender, Body: body, Timestamp: ts.UTC()}
	return id
}

func (g *LocalGmail) CreateDraft(ctx context.Context, to, subject, body string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := "draft-" + uuid.NewString()
	g.drafts[id] = EmailContent{Subject: subject, Sender: to, Body: body, Timestamp: time.Now().UTC()}
	return id, nil
}

func (g *LocalGmail) Search(ctx context.Context, query string, maxResults int) ([]EmailSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	q := strings.ToLower(query)
	var out []EmailSummary
	for id, m := range g.messages {
		if strings.Contains(strings.ToLower(m.Subject), q) || strings.Contains(strings.ToLower(m.Body), q) {
			out = append(out, EmailSummary{ID: id, Subject: m.Subject, Snippet: snippet(m.Body)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (g *LocalGmail) ApplyLabel(ctx context.Context, messageID, label string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.messages[messageID]; !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	g.labels[messageID] = append(g.labels[messageID], label)
	return nil
}

func (g *LocalGmail) GetMessage(ctx context.Context, messageID string) (EmailContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.messages[messageID]
	if !ok {
		return EmailContent{}, fmt.Errorf("message %s not found", messageID)
	}
	return m, nil
}

// Labels returns the labels applied to a message.
func (g *LocalGmail) Labels(messageID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.labels[messageID]...)
}

// DraftCount reports how many drafts exist.
func (g *LocalGmail) DraftCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.drafts)
}

func snippet(body string) string {
	const max = 80
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}

// LocalCalendar is an in-process CalendarService used for local runs and
// tests.
type LocalCalendar struct {
	mu     sync.Mutex
	events map[string]Event
}

func NewLocalCalendar() *LocalCalendar {
	return &LocalCalendar{events: make(map[string]Event)}
}

func (c *LocalCalendar) CreateEvent(ctx context.Context, in EventInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := "evt-" + uuid.NewString()
	c.events[id] = Event{
		ID:          id,
		Title:       in.Title,
		Start:       in.Start.UTC(),
		End:         in.End.UTC(),
		Description: in.Description,
		Location:    in.Location,
		Attendees:   append([]string(nil), in.Attendees...),
	}
	return id, nil
}

func (c *LocalCalendar) SearchEvents(ctx context.Context, query string, window TimeRange, maxResults int) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := strings.ToLower(query)
	var out []Event
	for _, e := range c.events {
		if q != "" && !strings.Contains(strings.ToLower(e.Title), q) {
			continue
		}
		if !window.Start.IsZero() && e.End.Before(window.Start) {
			continue
		}
		if !window.End.IsZero() && e.Start.After(window.End) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (c *LocalCalendar) GetEvent(ctx context.Context, eventID string) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[eventID]
	if !ok {
		return Event{}, fmt.Errorf("event %s not found", eventID)
	}
	e.Attendees = append([]string(nil), e.Attendees...)
	return e, nil
}

func (c *LocalCalendar) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[eventID]
	if !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	if patch.Title != "" {
		e.Title = patch.Title
	}
	if patch.Start != nil {
		e.Start = patch.Start.UTC()
	}
	if patch.End != nil {
		e.End = patch.End.UTC()
	}
	if patch.Description != "" {
		e.Description = patch.Description
	}
	if patch.Location != "" {
		e.Location = patch.Location
	}
	c.events[eventID] = e
	return nil
}

func (c *LocalCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[eventID]; !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	delete(c.events, eventID)
	return nil
}

func (c *LocalCalendar) FreeBusy(ctx context.Context, window TimeRange, participants []string) ([]BusyInterval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var busy []BusyInterval
	for _, e := range c.events {
		if e.End.Before(window.Start) || e.Start.After(window.End) {
			continue
		}
		if len(participants) > 0 && !attends(e, participants) {
			continue
		}
		busy = append(busy, BusyInterval{Start: e.Start, End: e.End, Who: strings.Join(e.Attendees, ", ")})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

func attends(e Event, participants []string) bool {
	for _, p := range participants {
		for _, a := range e.Attendees {
			if strings.EqualFold(a, p) {
				return true
			}
		}
	}
	return false
}
