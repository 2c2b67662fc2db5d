// Package plan maintains the mirrored task plan observed from TaskCreate /
// TaskUpdate / TodoWrite tool results and projects it to the tracker's
// ordered plan shape (spec.md §4.5).
package plan

import (
	"regexp"
	"strconv"
)

// Status is a plan item's internal status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDeleted    Status = "deleted"
)

// trackerStatus is the fixed translation table from internal Status to the
// tracker's status vocabulary (spec.md §3).
var trackerStatus = map[Status]string{
	StatusPending:    "pending",
	StatusInProgress: "inProgress",
	StatusCompleted:  "completed",
	StatusDeleted:    "canceled",
}

// Item is one plan entry.
type Item struct {
	Content string
	Status  Status
}

// SnapshotItem is one entry of the tracker-facing plan projection.
type SnapshotItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// Reducer maintains an insertion-ordered taskId -> Item mapping. Updates
// happen in place; re-insertion never reorders an existing key (spec.md
// §4.5 invariant).
type Reducer struct {
	order []string
	items map[string]Item
}

// NewReducer constructs an empty plan reducer.
func NewReducer() *Reducer {
	return &Reducer{items: make(map[string]Item)}
}

var taskCreatedPattern = regexp.MustCompile(`Task #(\d+)`)

// HandleTaskCreate parses the tracker-assigned task id out of resultText
// (a "Task #(\d+)" match) and inserts a fresh pending item keyed by that
// id. No match means ignore — spec.md §4.5.
func (r *Reducer) HandleTaskCreate(input map[string]any, resultText string) {
	m := taskCreatedPattern.FindStringSubmatch(resultText)
	if m == nil {
		return
	}
	id := m[1]
	subject := stringOrEmpty(input, "subject")
	r.insert(id, Item{Content: subject, Status: StatusPending})
}

// HandleTaskUpdate looks up input.taskId; a "deleted" status removes the
// entry, otherwise present fields (status, subject) are applied in place.
// A missing taskId is ignored — spec.md §4.5.
func (r *Reducer) HandleTaskUpdate(input map[string]any) {
	id := stringOrEmpty(input, "taskId")
	if id == "" {
		return
	}
	item, ok := r.items[id]
	if !ok {
		return
	}

	if status, present := input["status"]; present {
		if s, _ := status.(string); s == string(StatusDeleted) {
			r.remove(id)
			return
		}
	}

	if v, present := input["status"]; present {
		if s, ok := v.(string); ok && s != "" {
			item.Status = Status(s)
		}
	}
	if v, present := input["subject"]; present {
		if s, ok := v.(string); ok && s != "" {
			item.Content = s
		}
	}
	r.items[id] = item
}

// HandleTodoWrite replaces the entire plan with input.todos, keyed by the
// string form of each element's array index (spec.md §4.5). An absent or
// empty todos list clears the plan.
func (r *Reducer) HandleTodoWrite(input map[string]any) {
	r.order = nil
	r.items = make(map[string]Item)

	todosAny, ok := input["todos"]
	if !ok {
		return
	}
	todos, ok := todosAny.([]any)
	if !ok {
		return
	}
	for i, t := range todos {
		todo, _ := t.(map[string]any)
		content := stringOrEmpty(todo, "content")
		status := stringOrEmpty(todo, "status")
		if status == "" {
			status = string(StatusPending)
		}
		id := strconv.Itoa(i)
		r.insert(id, Item{Content: content, Status: Status(status)})
	}
}

// HasPlan reports whether the plan is non-empty.
func (r *Reducer) HasPlan() bool {
	return len(r.order) > 0
}

// Snapshot projects the current plan to the tracker's ordered shape,
// translating statuses through the fixed table (unknown statuses default
// to "pending").
func (r *Reducer) Snapshot() []SnapshotItem {
	out := make([]SnapshotItem, 0, len(r.order))
	for _, id := range r.order {
		item := r.items[id]
		status, ok := trackerStatus[item.Status]
		if !ok {
			status = "pending"
		}
		out = append(out, SnapshotItem{Content: item.Content, Status: status})
	}
	return out
}

func (r *Reducer) insert(id string, item Item) {
	if _, exists := r.items[id]; !exists {
		r.order = append(r.order, id)
	}
	r.items[id] = item
}

func (r *Reducer) remove(id string) {
	if _, exists := r.items[id]; !exists {
		return
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func stringOrEmpty(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
