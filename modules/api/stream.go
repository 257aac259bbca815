package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/modules/tasklist"
	"github.com/gofiber/contrib/websocket"
)

// handleTaskStream serves GET /ws/tasks. Each connection owns a live view;
// every change to the store, the sort key or the filter key pushes a fresh
// list to the client.
func (m *APIModule) handleTaskStream(c *websocket.Conn) {
	log := m.logger.With("remote", c.RemoteAddr().String())

	var writeMu sync.Mutex
	send := func(msg StreamMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(msg)
	}

	q, err := m.parseQuery(c.Query("sort"), c.Query("filter"))
	if err != nil {
		_ = send(StreamMessage{Type: streamTypeError, Message: err.Error()})
		return
	}

	src := m.feed()
	if src == nil {
		_ = send(StreamMessage{Type: streamTypeError, Message: "task feed unavailable"})
		return
	}

	m.streams.Add(1)
	defer m.streams.Add(-1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	view := tasklist.New(ctx, src, q)
	sub := view.Subscribe(ctx)
	log = log.With("stream", sub.ID())
	log.Info("Task stream opened", "sort", q.Sort, "filter", q.Filter)

	written := make(chan struct{})
	go func() {
		defer close(written)
		for list := range sub.C() {
			if err := send(listMessage(list.Query, list.Tasks)); err != nil {
				log.Debug("Task stream write failed", "error", err)
				_ = c.Close()
				return
			}
		}
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Info("Task stream closed by client")
			} else {
				log.Debug("Task stream read failed", "error", err)
			}
			break
		}

		var cmd StreamCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = send(StreamMessage{Type: streamTypeError, Message: "Invalid message format"})
			continue
		}
		if err := applyCommand(view, cmd); err != nil {
			_ = send(StreamMessage{Type: streamTypeError, Message: err.Error()})
		}
	}

	view.Close()
	<-written
}

func (m *APIModule) parseQuery(sort, filter string) (domain.Query, error) {
	sortKey, err := domain.ParseSortKey(sort)
	if err != nil {
		return domain.Query{}, err
	}
	filterKey, err := domain.ParseFilterKey(filter)
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{Sort: sortKey, Filter: filterKey, PriorityOrder: m.cfg.PriorityOrder}, nil
}

// applyCommand changes the view according to a client command.
func applyCommand(view *tasklist.View, cmd StreamCommand) error {
	switch cmd.Type {
	case commandSort:
		key, err := domain.ParseSortKey(cmd.Value)
		if err != nil {
			return err
		}
		view.SetSort(key)
	case commandFilter:
		key, err := domain.ParseFilterKey(cmd.Value)
		if err != nil {
			return err
		}
		view.SetFilter(key)
	default:
		return fmt.Errorf("unknown message type: %s", cmd.Type)
	}
	return nil
}

func listMessage(q domain.Query, tasks []domain.Task) StreamMessage {
	return StreamMessage{
		Type:   streamTypeTasks,
		Sort:   string(q.Sort),
		Filter: string(q.Filter),
		Tasks:  toTaskResponses(tasks),
		Total:  len(tasks),
	}
}
