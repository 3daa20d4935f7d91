package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/example/lab-scheduler/internal/domain"
)

// Lifecycle is a change that produces a notification.
type Lifecycle string

const (
	BookingAdded     Lifecycle = "booking_added"
	BookingApproved  Lifecycle = "booking_approved"
	BookingEdited    Lifecycle = "booking_edited"
	BookingDeleted   Lifecycle = "booking_deleted"
	ProposalPending  Lifecycle = "proposal_pending"
	ProposalRejected Lifecycle = "proposal_rejected"
	EventAdded       Lifecycle = "event_added"
	EventEdited      Lifecycle = "event_edited"
	EventDeleted     Lifecycle = "event_deleted"
)

// Notice is the record data a message is rendered from.
type Notice struct {
	RecordID  string
	Title     string
	Detail    string
	Lab       string
	Date      string
	Block     string
	Courses   []string
	ActorName string
}

// BookingNotice describes a booking.
func BookingNotice(b domain.Booking, actorName string) Notice {
	return Notice{
		RecordID:  b.ID,
		Title:     b.Subject,
		Detail:    b.Notes,
		Lab:       b.Lab,
		Date:      b.Date,
		Block:     b.Block(),
		Courses:   append([]string(nil), b.Courses...),
		ActorName: actorName,
	}
}

// EventNotice describes an event.
func EventNotice(e domain.Event, actorName string) Notice {
	lab := e.Lab
	if lab == domain.AllLabs {
		lab = "Todos os laboratórios"
	}
	return Notice{
		RecordID:  e.ID,
		Title:     e.Title,
		Detail:    e.Description,
		Lab:       lab,
		Date:      e.Date,
		Block:     e.Block(),
		ActorName: actorName,
	}
}

var headlines = map[Lifecycle]string{
	BookingAdded:     "Nova aula agendada",
	BookingApproved:  "Aula aprovada",
	BookingEdited:    "Aula alterada",
	BookingDeleted:   "Aula removida",
	ProposalPending:  "Nova proposta aguardando aprovação",
	ProposalRejected: "Proposta rejeitada",
	EventAdded:       "Novo evento",
	EventEdited:      "Evento alterado",
	EventDeleted:     "Evento removido",
}

// Render produces the message text for one channel format.
func Render(n Notice, lc Lifecycle, format Format) string {
	headline, ok := headlines[lc]
	if !ok {
		headline = string(lc)
	}

	lines := [][2]string{
		{"Título", n.Title},
		{"Laboratório", n.Lab},
		{"Data", displayDate(n.Date)},
		{"Horário", n.Block},
	}
	if len(n.Courses) > 0 {
		lines = append(lines, [2]string{"Cursos", strings.Join(n.Courses, ", ")})
	}
	if n.Detail != "" {
		lines = append(lines, [2]string{"Detalhes", n.Detail})
	}
	if n.ActorName != "" {
		lines = append(lines, [2]string{"Por", n.ActorName})
	}

	var b strings.Builder
	if format == FormatHTML {
		fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(headline))
		for _, l := range lines {
			if l[1] == "" {
				continue
			}
			fmt.Fprintf(&b, "\n<b>%s:</b> %s", l[0], html.EscapeString(l[1]))
		}
		return b.String()
	}
	b.WriteString(headline)
	for _, l := range lines {
		if l[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", l[0], l[1])
	}
	return b.String()
}

// displayDate turns 2025-11-25 into 25/11/2025.
func displayDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}
