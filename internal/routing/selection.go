package routing

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrSelectionFull       = errors.New("start and goal already selected; reset first")
	ErrIncompleteSelection = errors.New("select a start and a goal first")
	ErrSelectionChanged    = errors.New("selection was reset while routing")
)

// Router plans a path between two nodes.
type Router interface {
	Route(ctx context.Context, req Request) (Result, error)
}

// Selection is a snapshot of the user's choices and the route drawn for
// them.
type Selection struct {
	Picks   []int // start, then goal
	Profile Profile
	Route   Result
}

// Navigator tracks the start/goal picks and the current route, and
// submits route requests.
type Navigator struct {
	router Router

	mu      sync.Mutex
	picks   []int
	profile Profile
	route   Result
	gen     uint64 // bumped by Reset
}

func NewNavigator(router Router) *Navigator {
	return &Navigator{router: router, profile: ProfileDefault}
}

// Pick adds a node as start, then as goal. A third pick is rejected until
// Reset.
func (n *Navigator) Pick(nodeID int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.picks) >= 2 {
		return ErrSelectionFull
	}
	n.picks = append(n.picks, nodeID)
	return nil
}

func (n *Navigator) SetProfile(p Profile) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.profile = p
}

// Reset clears the picks together with the route.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.picks = nil
	n.route = Result{}
	n.gen++
}

func (n *Navigator) Selection() Selection {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Selection{
		Picks:   append([]int(nil), n.picks...),
		Profile: n.profile,
		Route:   Result{Nodes: append([]int(nil), n.route.Nodes...)},
	}
}

// Submit requests a route for the current picks. On ErrUnavailable the
// previous route is kept; an empty answer replaces the route and returns
// ErrEmptyRoute. An answer that arrives after a Reset is dropped with
// ErrSelectionChanged.
func (n *Navigator) Submit(ctx context.Context) (Result, error) {
	n.mu.Lock()
	if len(n.picks) < 2 {
		n.mu.Unlock()
		return Result{}, ErrIncompleteSelection
	}
	req := Request{StartID: n.picks[0], GoalID: n.picks[1], Profile: n.profile}
	gen := n.gen
	n.mu.Unlock()

	res, err := n.router.Route(ctx, req)
	if err != nil {
		return Result{}, err
	}

	n.mu.Lock()
	if n.gen != gen {
		n.mu.Unlock()
		return Result{}, ErrSelectionChanged
	}
	n.route = res
	n.mu.Unlock()

	if res.Empty() {
		return res, ErrEmptyRoute
	}
	return res, nil
}
