package notify

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
)

func newTestRouter(t *testing.T, channels map[string]ChannelConfig) *Router {
	t.Helper()
	return NewRouter(catalog.Default(time.UTC), RouterConfig{Channels: channels})
}

func TestRoute(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	tests := []struct {
		lab  string
		want []string
	}{
		{lab: "Anatomy 1", want: []string{ChannelAnatomy}},
		{lab: "microscopy 2", want: []string{ChannelPathology}},
		{lab: "Multidisciplinary 1", want: []string{ChannelChemistry, ChannelPathology}},
		{lab: "Pharmaceutical Technology", want: []string{ChannelChemistry, ChannelPathology}},
		{lab: "Chemistry 1", want: []string{ChannelChemistry}},
		{lab: "Clinical Skills", want: []string{ChannelGeneral}},
		{lab: "All", want: []string{ChannelGeneral}},
		{lab: "", want: []string{ChannelGeneral}},
		{lab: "Unknown", want: []string{ChannelGeneral}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.lab, func(t *testing.T) {
			t.Parallel()
			if got := router.Route(tt.lab); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Route(%q) = %v, want %v", tt.lab, got, tt.want)
			}
		})
	}
}

func TestChannelsPendingAndRejectedGoToReview(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	for _, lc := range []Lifecycle{ProposalPending, ProposalRejected} {
		if got := router.Channels(lc, "Anatomy 1"); !reflect.DeepEqual(got, []string{ChannelPendingReview}) {
			t.Errorf("%s routed to %v", lc, got)
		}
	}
	if got := router.Channels(BookingApproved, "Anatomy 1"); !reflect.DeepEqual(got, []string{ChannelAnatomy}) {
		t.Errorf("approved routed to %v", got)
	}
}

func TestRouteReturnsCopy(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, nil)

	got := router.Route("Anatomy 1")
	got[0] = "mutated"
	if router.Route("Anatomy 1")[0] != ChannelAnatomy {
		t.Fatalf("Route exposed the routing table")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	n := Notice{Title: "Anatomia <I>", Lab: "Anatomy 1", Date: "2025-11-25", Block: "07:00-09:10", Courses: []string{"Medicine"}, ActorName: "Ana"}

	plain := Render(n, BookingApproved, FormatPlain)
	for _, want := range []string{"Aula aprovada", "Data: 25/11/2025", "Horário: 07:00-09:10", "Cursos: Medicine", "Anatomia <I>"} {
		if !strings.Contains(plain, want) {
			t.Errorf("plain message missing %q:\n%s", want, plain)
		}
	}

	htmlText := Render(n, ProposalRejected, FormatHTML)
	if !strings.HasPrefix(htmlText, "<b>Proposta rejeitada</b>") {
		t.Errorf("unexpected html headline:\n%s", htmlText)
	}
	if !strings.Contains(htmlText, "Anatomia &lt;I&gt;") {
		t.Errorf("html message must escape content:\n%s", htmlText)
	}
}

func TestEventNoticeAllLabs(t *testing.T) {
	t.Parallel()

	n := EventNotice(domain.Event{ID: "e1", Title: "Natal", Lab: domain.AllLabs, Date: "2025-12-25", TimeBlocks: []string{"13:00-15:10"}}, "Ana")
	if n.Lab != "Todos os laboratórios" || n.Block != "13:00-15:10" {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestDispatcherReportsPerChannel(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, map[string]ChannelConfig{
		ChannelChemistry: {ThreadID: "42", Format: FormatHTML},
		UserChannel("*"): {Format: FormatPlain},
		ChannelPathology: {},
	})
	boom := errors.New("chat not found")
	rec := &Recorder{FailChannels: map[string]error{ChannelPathology: boom}}
	d := NewDispatcher(router, rec, nil)

	deliveries := d.Notify(context.Background(),
		Notice{RecordID: "b1", Title: "Química Geral", Lab: "Multidisciplinary 1"},
		BookingDeleted,
		UserChannel("tech-1"), ChannelChemistry,
	)

	wantChannels := []string{ChannelChemistry, ChannelPathology, UserChannel("tech-1")}
	if len(deliveries) != len(wantChannels) {
		t.Fatalf("expected %d deliveries, got %+v", len(wantChannels), deliveries)
	}
	for i, want := range wantChannels {
		if deliveries[i].ChannelID != want {
			t.Errorf("delivery %d: got %s, want %s", i, deliveries[i].ChannelID, want)
		}
	}
	if !errors.Is(deliveries[1].Err, boom) {
		t.Errorf("expected pathology failure to be reported, got %v", deliveries[1].Err)
	}
	if Failed(deliveries) != 1 {
		t.Errorf("expected one failure, got %d", Failed(deliveries))
	}

	for _, m := range rec.Messages() {
		if m.ChannelID == ChannelChemistry && (m.ThreadID != "42" || m.Format != FormatHTML) {
			t.Errorf("channel settings not applied: %+v", m)
		}
	}
}

func TestDispatcherWithoutTransport(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(newTestRouter(t, nil), nil, nil)
	deliveries := d.Notify(context.Background(), Notice{Lab: "Anatomy 1"}, BookingAdded)
	if len(deliveries) != 1 || deliveries[0].Err == nil {
		t.Fatalf("expected a failed delivery, got %+v", deliveries)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	t.Parallel()

	first := &Recorder{}
	second := &Recorder{FailChannels: map[string]error{ChannelGeneral: errors.New("down")}}
	err := Fanout{first, second}.Send(context.Background(), Message{ChannelID: ChannelGeneral, Text: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(first.Messages()) != 1 {
		t.Fatalf("first transport must still receive the message")
	}
}
