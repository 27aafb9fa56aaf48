// Package graph runs agent workflows as a directed graph of nodes over a
// shared State, checkpointing after every step.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vishalm/LlamaBot/internal/store"
)

// END is the terminal pseudo-node.
const END = "__end__"

const DefaultRecursionLimit = 25

const (
	KindMessages = "messages"
	KindUpdates  = "updates"
)

var (
	ErrRecursionLimit = errors.New("recursion limit reached")
	ErrUnknownNode    = errors.New("unknown node")
)

// Emitter streams model tokens attributed to the running node.
type Emitter interface {
	Message(text string)
}

type NodeFunc func(ctx context.Context, state State, out Emitter) (Update, error)

// RouteFunc picks the next node (or END) from the merged state.
type RouteFunc func(state State) string

// Event is either a token chunk (KindMessages) or a finished node's update
// (KindUpdates).
type Event struct {
	Kind    string
	Node    string
	Content string
	Update  Update
}

// Checkpointer is the subset of the store a run needs.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) error
	LatestCheckpoint(ctx context.Context, threadID string) (*store.Checkpoint, error)
}

type Graph struct {
	nodes       map[string]NodeFunc
	order       []string
	edges       map[string]string
	conditional map[string]RouteFunc
	entry       string
	errs        []error
}

func New() *Graph {
	return &Graph{
		nodes:       map[string]NodeFunc{},
		edges:       map[string]string{},
		conditional: map[string]RouteFunc{},
	}
}

func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	switch {
	case name == "" || name == END:
		g.errs = append(g.errs, fmt.Errorf("invalid node name %q", name))
	case fn == nil:
		g.errs = append(g.errs, fmt.Errorf("node %q has no function", name))
	case g.nodes[name] != nil:
		g.errs = append(g.errs, fmt.Errorf("node %q already added", name))
	default:
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

func (g *Graph) AddEdge(from, to string) *Graph {
	if _, ok := g.edges[from]; ok {
		g.errs = append(g.errs, fmt.Errorf("node %q already has an edge", from))
		return g
	}
	g.edges[from] = to
	return g
}

func (g *Graph) AddConditionalEdge(from string, route RouteFunc) *Graph {
	if route == nil {
		g.errs = append(g.errs, fmt.Errorf("conditional edge from %q has no route", from))
		return g
	}
	if _, ok := g.conditional[from]; ok {
		g.errs = append(g.errs, fmt.Errorf("node %q already has a conditional edge", from))
		return g
	}
	g.conditional[from] = route
	return g
}

type Option func(*Runnable)

func WithCheckpointer(checkpointer Checkpointer) Option {
	return func(r *Runnable) {
		r.checkpointer = checkpointer
	}
}

// WithRecursionLimit bounds the number of node executions per run.
func WithRecursionLimit(limit int) Option {
	return func(r *Runnable) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

func (g *Graph) Compile(opts ...Option) (*Runnable, error) {
	if len(g.errs) > 0 {
		return nil, errors.Join(g.errs...)
	}
	if g.entry == "" {
		return nil, errors.New("entry point not set")
	}
	if g.nodes[g.entry] == nil {
		return nil, fmt.Errorf("entry point %q: %w", g.entry, ErrUnknownNode)
	}
	for from, to := range g.edges {
		if g.nodes[from] == nil {
			return nil, fmt.Errorf("edge from %q: %w", from, ErrUnknownNode)
		}
		if to != END && g.nodes[to] == nil {
			return nil, fmt.Errorf("edge to %q: %w", to, ErrUnknownNode)
		}
		if _, ok := g.conditional[from]; ok {
			return nil, fmt.Errorf("node %q has both a static and a conditional edge", from)
		}
	}
	for from := range g.conditional {
		if g.nodes[from] == nil {
			return nil, fmt.Errorf("conditional edge from %q: %w", from, ErrUnknownNode)
		}
	}
	for _, name := range g.order {
		_, static := g.edges[name]
		_, routed := g.conditional[name]
		if !static && !routed {
			return nil, fmt.Errorf("node %q has no outgoing edge", name)
		}
	}

	runnable := &Runnable{
		nodes:       cloneMap(g.nodes),
		edges:       cloneMap(g.edges),
		conditional: cloneMap(g.conditional),
		entry:       g.entry,
		limit:       DefaultRecursionLimit,
	}
	for _, opt := range opts {
		opt(runnable)
	}
	return runnable, nil
}

type Runnable struct {
	nodes        map[string]NodeFunc
	edges        map[string]string
	conditional  map[string]RouteFunc
	entry        string
	limit        int
	checkpointer Checkpointer
}

// Stream runs one turn on the thread and reports progress through onEvent.
// It returns the state as of the last merged step, also on error.
func (r *Runnable) Stream(ctx context.Context, threadID string, input Input, onEvent func(Event)) (State, error) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	var state State
	parentID := ""
	if r.checkpointer != nil {
		latest, err := r.checkpointer.LatestCheckpoint(ctx, threadID)
		if err != nil {
			return state, fmt.Errorf("load checkpoint: %w", err)
		}
		if latest != nil {
			if err := json.Unmarshal(latest.State, &state); err != nil {
				return state, fmt.Errorf("decode checkpoint %s: %w", latest.ID, err)
			}
			parentID = latest.ID
		}
	}

	state, err := state.startTurn(input)
	if err != nil {
		return state, err
	}
	if parentID, err = r.save(ctx, threadID, parentID, -1, "", r.entry, state); err != nil {
		return state, err
	}

	current := r.entry
	for step := 0; current != END; step++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if step >= r.limit {
			return state, fmt.Errorf("%w: %d steps without reaching the end", ErrRecursionLimit, r.limit)
		}

		update, err := r.nodes[current](ctx, state, emitter{node: current, onEvent: onEvent})
		if err != nil {
			return state, fmt.Errorf("node %s: %w", current, err)
		}
		if state, err = state.Apply(update); err != nil {
			return state, fmt.Errorf("node %s: %w", current, err)
		}
		onEvent(Event{Kind: KindUpdates, Node: current, Update: update})

		next, err := r.next(current, state)
		if err != nil {
			return state, err
		}
		if parentID, err = r.save(ctx, threadID, parentID, step, current, next, state); err != nil {
			return state, err
		}
		current = next
	}
	return state, nil
}

func (r *Runnable) next(current string, state State) (string, error) {
	if route, ok := r.conditional[current]; ok {
		next := route(state)
		if next != END && r.nodes[next] == nil {
			return "", fmt.Errorf("route from %s to %q: %w", current, next, ErrUnknownNode)
		}
		return next, nil
	}
	return r.edges[current], nil
}

func (r *Runnable) save(ctx context.Context, threadID, parentID string, step int, node, next string, state State) (string, error) {
	if r.checkpointer == nil {
		return parentID, nil
	}
	encoded, err := json.Marshal(state.normalized())
	if err != nil {
		return parentID, fmt.Errorf("encode state: %w", err)
	}
	var pending []string
	if next != END {
		pending = []string{next}
	}
	checkpoint := store.Checkpoint{
		ThreadID:  threadID,
		ID:        ulid.Make().String(),
		ParentID:  parentID,
		Step:      step,
		Node:      node,
		Next:      pending,
		State:     encoded,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.checkpointer.SaveCheckpoint(ctx, checkpoint); err != nil {
		return parentID, fmt.Errorf("save checkpoint: %w", err)
	}
	return checkpoint.ID, nil
}

type emitter struct {
	node    string
	onEvent func(Event)
}

func (e emitter) Message(text string) {
	if text == "" {
		return
	}
	e.onEvent(Event{Kind: KindMessages, Node: e.node, Content: text})
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
