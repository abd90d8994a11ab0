package calendar

import (
	"github.com/emersion/go-ical"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/search"
	"io"
	"strings"
	"time"
)

// productID is the PRODID of exported calendars.
const productID = "-//lefinal//festfinder//EN"

// uidDomain is appended to festival ids for globally unique event UIDs.
const uidDomain = "festfinder"

// NewCalendar creates an ical.Calendar with one all-day event per ranked
// festival. The end date of events is exclusive as required for all-day
// events. stamp is used as DTSTAMP.
func NewCalendar(events []search.RankedEvent, locale search.Locale, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for _, e := range events {
		cal.Children = append(cal.Children, newEvent(e, locale, stamp).Component)
	}
	return cal
}

func newEvent(e search.RankedEvent, locale search.Locale, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, e.ID+"@"+uidDomain)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDate(ical.PropDateTimeStart, e.Start.Time())
	event.Props.SetDate(ical.PropDateTimeEnd, e.End.AddDays(1).Time())
	event.Props.SetText(ical.PropSummary, e.Name+" - "+e.College)
	if e.City != "" {
		event.Props.SetText(ical.PropLocation, e.City)
	}
	description := []string{locale.FormatRange(e.Start, e.End)}
	if e.EventType != "" {
		description = append(description, e.EventType)
	}
	if e.CompetitionType != "" {
		description = append(description, e.CompetitionType)
	}
	event.Props.SetText(ical.PropDescription, strings.Join(description, "\n"))
	if e.EventType != "" {
		event.Props.SetText(ical.PropCategories, e.EventType)
	}
	return event
}

// Write encodes the calendar for the given ranked festivals to the writer. As
// calendars must contain at least one component, an errors.ErrNotFound error is
// returned for empty lists.
func Write(w io.Writer, events []search.RankedEvent, locale search.Locale, stamp time.Time) error {
	if len(events) == 0 {
		return errors.NewResourceNotFoundError("no festivals to export", nil)
	}
	err := ical.NewEncoder(w).Encode(NewCalendar(events, locale, stamp))
	if err != nil {
		return errors.NewInternalErrorFromErr(err, "encode calendar", errors.Details{"events": len(events)})
	}
	return nil
}
