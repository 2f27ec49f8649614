package orderstatus

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Status struct {
	Name string
}

// Code returns the backend wire code.
func (s Status) Code() string {
	return s.Name
}

// Label returns the display label shown on every surface.
func (s Status) Label() string {
	if label, ok := labels[s.Name]; ok {
		return label
	}
	return labels[Statuses.Received.Name]
}

// IsZero reports whether the status was never set.
func (s Status) IsZero() bool {
	return s.Name == ""
}

// IsTerminal reports whether the order is closed: delivered or cancelled.
func (s Status) IsTerminal() bool {
	return s == Statuses.Delivered || s == Statuses.Cancelled
}

type Enum struct {
	Draft         Status
	Received      Status
	InPreparation Status
	Ready         Status
	OnTheWay      Status
	Delivered     Status
	Cancelled     Status
}

var Statuses = Enum{
	Draft:         Status{Name: "DRAFT"},
	Received:      Status{Name: "RECEIVED"},
	InPreparation: Status{Name: "IN_PREPARATION"},
	Ready:         Status{Name: "READY"},
	OnTheWay:      Status{Name: "ON_THE_WAY"},
	Delivered:     Status{Name: "DELIVERED"},
	Cancelled:     Status{Name: "CANCELLED"},
}

var All = []Status{
	Statuses.Draft,
	Statuses.Received,
	Statuses.InPreparation,
	Statuses.Ready,
	Statuses.OnTheWay,
	Statuses.Delivered,
	Statuses.Cancelled,
}

var labels = map[string]string{
	"DRAFT":          "RASCUNHO",
	"RECEIVED":       "A PREPARAR",
	"IN_PREPARATION": "EM PREPARO",
	"READY":          "PRONTO",
	"ON_THE_WAY":     "SAIU PARA ENTREGA",
	"DELIVERED":      "ENTREGUE",
	"CANCELLED":      "CANCELADO",
}

// aliases maps normalized backend codes and display labels to a status.
var aliases = map[string]Status{
	"PENDING":          Statuses.Received,
	"NEW":              Statuses.Received,
	"RECEBIDO":         Statuses.Received,
	"PREPARING":        Statuses.InPreparation,
	"IN_PROGRESS":      Statuses.InPreparation,
	"EM_PREPARACAO":    Statuses.InPreparation,
	"PREPARANDO":       Statuses.InPreparation,
	"OUT_FOR_DELIVERY": Statuses.OnTheWay,
	"EN_ROUTE":         Statuses.OnTheWay,
	"DELIVERY":         Statuses.OnTheWay,
	"A_CAMINHO":        Statuses.OnTheWay,
	"EM_ROTA":          Statuses.OnTheWay,
	"FINISHED":         Statuses.Delivered,
	"CANCELED":         Statuses.Cancelled,
}

func init() {
	for _, s := range All {
		aliases[s.Name] = s
		aliases[normalizeKey(labels[s.Name])] = s
	}
}

// ByName returns the status for a given canonical name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Normalize resolves any backend code, alias or display label to a status.
// Unrecognized input resolves to Received.
func Normalize(raw string) Status {
	if s, ok := Lookup(raw); ok {
		return s
	}
	return Statuses.Received
}

// Lookup is Normalize without the fallback.
func Lookup(raw string) (Status, bool) {
	s, ok := aliases[normalizeKey(raw)]
	return s, ok
}

// ToDisplay maps a backend code to its display label.
func ToDisplay(backendStatus string) string {
	return Normalize(backendStatus).Label()
}

// ToBackend maps a display label back to its status.
func ToBackend(displayLabel string) Status {
	return Normalize(displayLabel)
}

var transitions = map[Status][]Status{
	Statuses.Draft:         {Statuses.Received, Statuses.Cancelled},
	Statuses.Received:      {Statuses.InPreparation, Statuses.Cancelled},
	Statuses.InPreparation: {Statuses.Ready, Statuses.Cancelled},
	Statuses.Ready:         {Statuses.OnTheWay, Statuses.Delivered, Statuses.Cancelled},
	Statuses.OnTheWay:      {Statuses.Delivered, Statuses.Cancelled},
}

// CanTransition reports whether an order may move from one status to another.
// Staying in the same status is not a transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var progress = map[Status]int{
	Statuses.Draft:         0,
	Statuses.Received:      1,
	Statuses.InPreparation: 2,
	Statuses.Ready:         3,
	Statuses.OnTheWay:      4,
	Statuses.Delivered:     5,
	Statuses.Cancelled:     5,
}

// Advances reports whether to lies ahead of from in the order lifecycle,
// possibly skipping intermediate steps. Cancelling an open order advances.
func Advances(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	return progress[to] > progress[from]
}

// StepIndex is the progress step shown by the customer tracker:
// -1 received, 0 preparing, 1 on the way, 2 delivered.
func StepIndex(s Status) int {
	switch s {
	case Statuses.InPreparation, Statuses.Ready:
		return 0
	case Statuses.OnTheWay:
		return 1
	case Statuses.Delivered:
		return 2
	default:
		return -1
	}
}

func normalizeKey(raw string) string {
	s := strings.TrimSpace(raw)
	if folded, _, err := transform.String(foldAccents(), s); err == nil {
		s = folded
	}
	s = strings.ToUpper(s)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
