package cmdb

import "fmt"

// MergeFunc combines an existing and an incoming value of fixed kinds into
// the merged result. Cell functions must not mutate their arguments.
type MergeFunc func(existing, incoming any) any

// kindPair indexes the 3x3 policy table.
type kindPair [2]Kind

// Policy is a complete merge behavior: one cell per (existing, incoming)
// kind pair. A missing cell keeps the existing value.
type Policy struct {
	name  string
	cells map[kindPair]MergeFunc
}

// Built-in policy names accepted by PolicyByName.
const (
	PolicyLeftPrecedent  = "left-precedent"
	PolicyRightPrecedent = "right-precedent"
)

// LeftPrecedent returns the default policy: a value found in an earlier
// (more specific) source is never overwritten by a later one. Only
// mapping/mapping pairs compose; every other pair keeps the existing value,
// including any pair involving a sequence.
func LeftPrecedent() *Policy {
	p := &Policy{name: PolicyLeftPrecedent}
	p.cells = map[kindPair]MergeFunc{
		{KindMapping, KindMapping}: p.mergeMappings,
	}
	return p
}

// RightPrecedent returns the mirror policy: the incoming value wins on
// every conflict except mapping/mapping, which still composes key-wise.
func RightPrecedent() *Policy {
	p := &Policy{name: PolicyRightPrecedent}
	take := func(_, incoming any) any { return incoming }
	p.cells = map[kindPair]MergeFunc{
		{KindScalar, KindScalar}:     take,
		{KindScalar, KindSequence}:   take,
		{KindScalar, KindMapping}:    take,
		{KindSequence, KindScalar}:   take,
		{KindSequence, KindSequence}: take,
		{KindSequence, KindMapping}:  take,
		{KindMapping, KindScalar}:    take,
		{KindMapping, KindSequence}:  take,
		{KindMapping, KindMapping}:   p.mergeMappings,
	}
	return p
}

// CustomPolicy builds a policy from a caller-supplied table. Pairs absent
// from cells keep the existing value. A nil MergeFunc in a cell installs
// the key-wise mapping recursion under this same policy.
func CustomPolicy(name string, cells map[[2]Kind]MergeFunc) *Policy {
	p := &Policy{name: name, cells: make(map[kindPair]MergeFunc, len(cells))}
	for pair, fn := range cells {
		if fn == nil {
			p.cells[kindPair(pair)] = p.mergeMappings
		} else {
			p.cells[kindPair(pair)] = fn
		}
	}
	return p
}

// PolicyByName resolves a built-in policy name.
func PolicyByName(name string) (*Policy, error) {
	switch name {
	case "", PolicyLeftPrecedent:
		return LeftPrecedent(), nil
	case PolicyRightPrecedent:
		return RightPrecedent(), nil
	default:
		return nil, fmt.Errorf("unknown merge behavior %q", name)
	}
}

// Name returns the policy name for logging.
func (p *Policy) Name() string { return p.name }

// Merge combines two configuration trees under the policy. It is pure:
// the result is a fresh tree sharing no mutable state with either input,
// and neither input is modified.
func (p *Policy) Merge(existing, incoming any) any {
	return deepCopy(p.apply(existing, incoming))
}

// apply dispatches one cell without copying. Internal recursion uses this
// so the deep copy in Merge happens exactly once, at the root.
func (p *Policy) apply(existing, incoming any) any {
	if cell, ok := p.cells[kindPair{KindOf(existing), KindOf(incoming)}]; ok {
		return cell(existing, incoming)
	}
	return existing
}

// mergeMappings merges two mappings key-wise: keys present on one side
// only are carried over, keys present on both dispatch through the policy
// again at the next level down.
func (p *Policy) mergeMappings(existing, incoming any) any {
	em := existing.(map[string]any)
	im := incoming.(map[string]any)

	out := make(map[string]any, len(em)+len(im))
	for k, ev := range em {
		if iv, ok := im[k]; ok {
			out[k] = p.apply(ev, iv)
		} else {
			out[k] = ev
		}
	}
	for k, iv := range im {
		if _, ok := em[k]; !ok {
			out[k] = iv
		}
	}
	return out
}
