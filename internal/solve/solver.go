package solve

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/pkgid"
)

// Cancelled is returned (wrapped) when the supplied cancellation channel
// fires mid-solve.
var Cancelled = errors.New("solve cancelled")

// pendingReq is one not-yet-merged incoming requirement, tagged with the
// name of the already-selected package that introduced it (for the
// derivation chain), or "" for a root requirement.
type pendingReq struct {
	req  Requirement
	from string
}

// decision records one package selection so the solver can backtrack it:
// on conflict, the candidate actually chosen is added to excluded and
// BestCandidate is asked again.
type decision struct {
	name       string
	pin        Pin
	excluded   map[pkgid.ID]bool
	req        Requirement  // the merged requirement in effect when this decision was made
	introduced []pendingReq // the requirements pin's selection introduced downstream
}

type solveState struct {
	provider Provider
	active   map[string]Requirement // merged, accumulated requirement per name
	selected map[string]Pin
	stack    []*decision
	chain    []string
	cancel   <-chan struct{}
	rootReqs []pendingReq // the top-level wanted requirements, replayed on every rebuildActive
}

// Solve finds a consistent set of package ids satisfying every requirement
// in wanted, against the given catalog provider. It returns the ids in a
// deterministic (name-ascending) order on success.
func Solve(provider Provider, wanted []Requirement, cancel <-chan struct{}) ([]pkgid.ID, error) {
	st := &solveState{
		provider: provider,
		active:   make(map[string]Requirement),
		selected: make(map[string]Pin),
		cancel:   cancel,
	}

	pending := make([]pendingReq, 0, len(wanted))
	for _, w := range wanted {
		pending = append(pending, pendingReq{req: w, from: "<root>"})
	}
	st.rootReqs = append([]pendingReq{}, pending...)

	if err := st.run(pending); err != nil {
		return nil, err
	}

	ids := make([]pkgid.ID, 0, len(st.selected))
	for _, pin := range st.selected {
		ids = append(ids, pin.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name.Less(ids[j].Name) })
	return ids, nil
}

func (st *solveState) checkCancel() error {
	if st.cancel == nil {
		return nil
	}
	select {
	case <-st.cancel:
		return errors.WithStack(Cancelled)
	default:
		return nil
	}
}

// run drains pending, merging requirements into st.active and selecting
// candidates, backtracking via st.stack on conflict, until either pending
// is empty (success) or backtracking is exhausted (failure).
func (st *solveState) run(initial []pendingReq) error {
	pending := initial

	for {
		if err := st.checkCancel(); err != nil {
			return err
		}

		if len(pending) == 0 {
			// Everything merged; pick the next unselected name, if any.
			name := st.nextUnselectedName()
			if name == "" {
				return nil // fixed point: every active requirement has a selection
			}
			next, err := st.selectFor(name)
			if err != nil {
				newPending, ok := st.backtrack()
				if !ok {
					return err
				}
				pending = newPending
				continue
			}
			pending = next
			continue
		}

		p := pending[0]
		pending = pending[1:]

		merged, ok := st.merge(p.req)
		if !ok {
			st.chain = append(st.chain, conflictLine(p))
			newPending, ok := st.backtrack()
			if !ok {
				return st.conflictError()
			}
			pending = newPending
			continue
		}
		st.active[p.req.Name.String()] = merged

		if pin, isSelected := st.selected[p.req.Name.String()]; isSelected {
			if !merged.Versions.Contains(pin.ID.Version) {
				st.chain = append(st.chain, conflictLine(p))
				newPending, ok := st.backtrack()
				if !ok {
					return st.conflictError()
				}
				pending = newPending
				continue
			}
		}
	}
}

func conflictLine(p pendingReq) string {
	return "given " + p.from + ", and that it requires " + p.req.Name.String() + ", then the range narrows;"
}

// merge folds req into whatever is already active for its name via
// Requirement.Intersection.
func (st *solveState) merge(req Requirement) (Requirement, bool) {
	existing, ok := st.active[req.Name.String()]
	if !ok {
		return req, true
	}
	return existing.Intersection(req)
}

func (st *solveState) nextUnselectedName() string {
	names := make([]string, 0, len(st.active))
	for name := range st.active {
		if _, ok := st.selected[name]; !ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// selectFor picks a candidate for name, pushes a decision, and returns the
// new requirements the selection introduces.
func (st *solveState) selectFor(name string) ([]pendingReq, error) {
	req := st.active[name]
	d := &decision{name: name, excluded: make(map[pkgid.ID]bool), req: req}
	return st.tryDecision(d)
}

func (st *solveState) tryDecision(d *decision) ([]pendingReq, error) {
	pin, ok, err := st.bestCandidateExcluding(d.req, d.excluded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, st.diagnoseMissing(d.req)
	}

	d.pin = pin
	st.stack = append(st.stack, d)
	st.selected[d.name] = pin

	reqs, err := st.provider.RequirementsOf(pin)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding requirements of %s", pin.ID)
	}

	out := make([]pendingReq, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, pendingReq{req: r, from: pin.ID.String()})
	}
	d.introduced = out
	return out, nil
}

func (st *solveState) bestCandidateExcluding(req Requirement, excluded map[pkgid.ID]bool) (Pin, bool, error) {
	// BestCandidate itself has no notion of exclusion, so re-derive a
	// tightened requirement that rules out every excluded id's exact
	// version, and ask again.
	tightened := req
	for id := range excluded {
		diff, ok := tightened.Difference(Requirement{Name: req.Name, Versions: pkgid.NewExact(id.Version), Uses: req.Uses})
		if !ok {
			return Pin{}, false, nil // every acceptable version is excluded
		}
		tightened = diff
	}
	return st.provider.BestCandidate(tightened)
}

// backtrack undoes the most recent decision, excludes the candidate it
// picked, and retries it; if that decision has no more candidates, pops
// further up the stack. On success it returns a fresh pending list built by
// rebuildActive, since the popped (and possibly retried) decisions' downstream
// requirements must be reprocessed from a clean slate rather than merged on
// top of whatever was active before the conflict.
func (st *solveState) backtrack() ([]pendingReq, bool) {
	for len(st.stack) > 0 {
		d := st.stack[len(st.stack)-1]
		st.stack = st.stack[:len(st.stack)-1]
		delete(st.selected, d.name)

		d.excluded[d.pin.ID] = true
		_, err := st.tryDecision(d)
		if err == nil {
			return st.rebuildActive(), true
		}
	}
	return nil, false
}

// rebuildActive recomputes st.active from scratch after a backtrack: the
// root wanted requirements plus every still-on-stack decision's introduced
// requirements, in stack order. A popped decision's contributions are never
// carried forward, since the whole map is rebuilt here rather than
// supplemented in place.
func (st *solveState) rebuildActive() []pendingReq {
	st.active = make(map[string]Requirement)
	pending := make([]pendingReq, 0, len(st.rootReqs))
	pending = append(pending, st.rootReqs...)
	for _, d := range st.stack {
		pending = append(pending, d.introduced...)
	}
	return pending
}

func (st *solveState) diagnoseMissing(req Requirement) error {
	known, _ := st.provider.KnownNames()

	any, _ := anyVersionExists(st.provider, req.Name)
	if !any {
		return &ConflictError{
			Chain:   append([]string{}, st.chain...),
			Missing: []pkgid.Name{req.Name},
			known:   known,
		}
	}

	libs, _ := st.provider.LibrariesOf(req.Name)
	have := make(map[string]bool, len(libs))
	for _, l := range libs {
		have[l.String()] = true
	}
	var bad []string
	for _, want := range req.Uses.Names() {
		if !have[want.String()] {
			bad = append(bad, req.Name.String()+": no candidate version provides library "+want.String())
		}
	}
	if len(bad) == 0 {
		bad = []string{req.Name.String() + ": no version in the acceptable range satisfies all requirements"}
	}

	return &ConflictError{
		Chain:   append([]string{}, st.chain...),
		BadUses: bad,
		known:   known,
	}
}

func (st *solveState) conflictError() error {
	return &ConflictError{Chain: append([]string{}, st.chain...)}
}

func anyVersionExists(provider Provider, name pkgid.Name) (bool, error) {
	libs, err := provider.LibrariesOf(name)
	if err != nil {
		return false, err
	}
	// LibrariesOf returning a non-nil result (even empty) implies at least
	// one candidate exists only if the underlying catalog distinguishes
	// "no package" from "package with no libraries"; fall back to asking
	// BestCandidate with an unbounded range as the authoritative check.
	_ = libs
	_, ok, err := provider.BestCandidate(Requirement{Name: name, Versions: pkgid.NewUnbounded(zeroVersion())})
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return false, nil
}

func zeroVersion() pkgid.Version {
	v, err := pkgid.ParseVersion("0.0.0")
	if err != nil {
		panic(err)
	}
	return v
}
