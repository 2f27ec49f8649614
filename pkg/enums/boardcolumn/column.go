package boardcolumn

import "github.com/appetiteclub/comanda/pkg/enums/orderstatus"

type Column struct {
	Name string
}

func (c Column) Code() string {
	return c.Name
}

func (c Column) Label() string {
	return c.Status().Label()
}

// Status is the status an order takes when dropped into the column.
func (c Column) Status() orderstatus.Status {
	switch c {
	case Columns.ToPrepare:
		return orderstatus.Statuses.Received
	case Columns.InProgress:
		return orderstatus.Statuses.InPreparation
	case Columns.Ready:
		return orderstatus.Statuses.Ready
	case Columns.Delivered:
		return orderstatus.Statuses.Delivered
	}
	return orderstatus.Status{}
}

// IsTerminal reports whether entries in the column are history only.
func (c Column) IsTerminal() bool {
	return c == Columns.Delivered
}

type Enum struct {
	ToPrepare  Column
	InProgress Column
	Ready      Column
	Delivered  Column
}

var Columns = Enum{
	ToPrepare:  Column{Name: "toPrepare"},
	InProgress: Column{Name: "inProgress"},
	Ready:      Column{Name: "ready"},
	Delivered:  Column{Name: "delivered"},
}

var All = []Column{
	Columns.ToPrepare,
	Columns.InProgress,
	Columns.Ready,
	Columns.Delivered,
}

// ByName returns the column for a given name, or nil if not found
func ByName(name string) *Column {
	for _, c := range All {
		if c.Name == name {
			return &c
		}
	}
	return nil
}

// For returns the column holding orders in the given status.
// Drafts are never on the board.
func For(s orderstatus.Status) (Column, bool) {
	switch s {
	case orderstatus.Statuses.Received:
		return Columns.ToPrepare, true
	case orderstatus.Statuses.InPreparation:
		return Columns.InProgress, true
	case orderstatus.Statuses.Ready:
		return Columns.Ready, true
	case orderstatus.Statuses.OnTheWay, orderstatus.Statuses.Delivered, orderstatus.Statuses.Cancelled:
		return Columns.Delivered, true
	}
	return Column{}, false
}

// Next is the column one step further along the kitchen flow.
func (c Column) Next() (Column, bool) {
	switch c {
	case Columns.ToPrepare:
		return Columns.InProgress, true
	case Columns.InProgress:
		return Columns.Ready, true
	case Columns.Ready:
		return Columns.Delivered, true
	}
	return Column{}, false
}
