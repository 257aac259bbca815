package task

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortKey selects the ordering of a task list.
type SortKey string

const (
	SortByDueDate    SortKey = "DueDate"
	SortByPriority   SortKey = "Priority"
	SortAlphabetical SortKey = "Alphabetical"
)

// FilterKey selects which tasks of a sorted list are kept.
type FilterKey string

const (
	FilterAll       FilterKey = "All"
	FilterCompleted FilterKey = "Completed"
	FilterPending   FilterKey = "Pending"
)

// PriorityOrder decides how SortByPriority ranks the labels.
type PriorityOrder int

const (
	// PriorityOrderSeverity ranks High, then Medium, then Low.
	PriorityOrderSeverity PriorityOrder = iota
	// PriorityOrderLexical ranks labels by descending string value,
	// which gives Medium, then Low, then High.
	PriorityOrderLexical
)

func (o PriorityOrder) String() string {
	if o == PriorityOrderLexical {
		return "lexical"
	}
	return "severity"
}

// ParsePriorityOrder accepts "severity" or "lexical". Empty means severity.
func ParsePriorityOrder(s string) (PriorityOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "severity":
		return PriorityOrderSeverity, nil
	case "lexical":
		return PriorityOrderLexical, nil
	default:
		return 0, fmt.Errorf("unknown priority order %q", s)
	}
}

// Query is a complete view selection.
type Query struct {
	Sort          SortKey
	Filter        FilterKey
	PriorityOrder PriorityOrder
}

// DefaultQuery sorts by due date and keeps every task.
func DefaultQuery() Query {
	return Query{Sort: SortByDueDate, Filter: FilterAll, PriorityOrder: PriorityOrderSeverity}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// ParseSortKey accepts the key names and the menu labels ("Due Date",
// "Alphabetically"). An empty string yields SortByDueDate.
func ParseSortKey(s string) (SortKey, error) {
	switch normalizeKey(s) {
	case "", "duedate":
		return SortByDueDate, nil
	case "priority":
		return SortByPriority, nil
	case "alphabetical", "alphabetically", "title":
		return SortAlphabetical, nil
	default:
		return "", &ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown sort key %q", s)}
	}
}

// ParseFilterKey accepts All, Completed or Pending in any case. An empty string yields FilterAll.
func ParseFilterKey(s string) (FilterKey, error) {
	switch normalizeKey(s) {
	case "", "all":
		return FilterAll, nil
	case "completed":
		return FilterCompleted, nil
	case "pending":
		return FilterPending, nil
	default:
		return "", &ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown filter key %q", s)}
	}
}

// Sort returns a new slice ordered by key. The input is left untouched and
// ties keep their input order. Unknown keys fall back to due date.
func Sort(tasks []Task, key SortKey, order PriorityOrder) []Task {
	out := slices.Clone(tasks)
	if out == nil {
		out = []Task{}
	}

	var compare func(a, b Task) int
	switch key {
	case SortByPriority:
		if order == PriorityOrderLexical {
			compare = func(a, b Task) int { return strings.Compare(string(b.Priority), string(a.Priority)) }
		} else {
			compare = func(a, b Task) int { return cmp.Compare(b.Priority.severity(), a.Priority.severity()) }
		}
	case SortAlphabetical:
		compare = func(a, b Task) int { return strings.Compare(a.Title, b.Title) }
	default:
		compare = func(a, b Task) int { return cmp.Compare(a.DueDate, b.DueDate) }
	}

	slices.SortStableFunc(out, compare)
	return out
}

// Filter returns a new slice holding the tasks accepted by key, in input order.
func Filter(tasks []Task, key FilterKey) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		switch key {
		case FilterCompleted:
			if !t.IsCompleted {
				continue
			}
		case FilterPending:
			if t.IsCompleted {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// Apply sorts, then filters.
func Apply(tasks []Task, q Query) []Task {
	return Filter(Sort(tasks, q.Sort, q.PriorityOrder), q.Filter)
}
