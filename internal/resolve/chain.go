package resolve

import "github.com/whharris917/atlas-sub000/internal/catalog"

// stateSubstitutionLimit caps the state-entry indirection loop. State
// entries typed as other state entries are pathological input; the walker
// degrades instead of spinning.
const stateSubstitutionLimit = 8

// step advances a chain by one attribute. Each running FQN is interpreted
// in fixed order: module-state substitution, catalog class member lookup
// (direct, declared attribute, then the inheritance walk), external class
// member allow-list, external namespace extension, and finally a
// catalog-validated extension that lets chains pass through module paths.
func (r *Resolver) step(cur, attr string) (string, bool) {
	for i := 0; i < stateSubstitutionLimit; i++ {
		st, ok := r.cat.State[cur]
		if !ok {
			break
		}
		fqn := st.Type.FQN()
		if fqn == "" {
			return "", false
		}
		cur = fqn
	}

	if cls, ok := r.cat.Classes[cur]; ok {
		return r.classMember(cls, attr)
	}

	if ext, ok := r.cat.ExternalClasses[cur]; ok {
		// Unknown attributes on external classes are rejected, never
		// guessed.
		if r.allow.Member(ext.FQN, attr) {
			return cur + "." + attr, true
		}
		return "", false
	}

	if r.allow.Covers(cur) {
		return cur + "." + attr, true
	}

	candidate := cur + "." + attr
	if r.cat.Known(candidate) || r.cat.KnownPrefix(candidate) {
		return candidate, true
	}
	return "", false
}

// classMember looks attr up on a class: a direct method first, then a
// declared attribute (continuing on that attribute's type), then the
// ancestor walk.
func (r *Resolver) classMember(cls *catalog.ClassEntry, attr string) (string, bool) {
	if fqn, ok := r.ownMember(cls, attr); ok {
		return fqn, true
	}
	visited := map[string]bool{cls.FQN: true}
	return r.inheritedMember(cls, attr, visited)
}

func (r *Resolver) ownMember(cls *catalog.ClassEntry, attr string) (string, bool) {
	method := cls.FQN + "." + attr
	if _, ok := r.cat.Functions[method]; ok {
		return method, true
	}
	if td, ok := cls.Attributes[attr]; ok {
		if fqn := td.FQN(); fqn != "" {
			return fqn, true
		}
		return "", false
	}
	return "", false
}

// inheritedMember walks the parent list depth-first, most-derived-first.
// The visited set guards against inheritance cycles; parents kept as
// unresolved literal names degrade the walk locally instead of failing it.
func (r *Resolver) inheritedMember(cls *catalog.ClassEntry, attr string, visited map[string]bool) (string, bool) {
	for _, parent := range cls.Parents {
		if visited[parent] {
			continue
		}
		visited[parent] = true

		ancestor, ok := r.cat.Classes[parent]
		if !ok {
			continue
		}
		if fqn, found := r.ownMember(ancestor, attr); found {
			return fqn, true
		}
		if fqn, found := r.inheritedMember(ancestor, attr, visited); found {
			return fqn, true
		}
	}
	return "", false
}
