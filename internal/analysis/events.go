package analysis

// CallClassifier may intercept a resolved call before default
// classification and file it under a different bucket. Classify returns
// true when it has handled the call; fqn is empty when resolution failed.
type CallClassifier interface {
	Classify(parts []string, fqn string, buckets Buckets) bool
}

// EmitDetector is the event-emission classifier: a call whose final
// attribute is one of the configured emit verbs is filed under the emits
// bucket rather than calls.
type EmitDetector struct {
	verbs map[string]bool
}

// DefaultEmitVerbs covers the common event-bus spellings.
var DefaultEmitVerbs = []string{"emit", "publish", "dispatch", "fire", "notify"}

func NewEmitDetector(verbs []string) *EmitDetector {
	if len(verbs) == 0 {
		verbs = DefaultEmitVerbs
	}
	set := make(map[string]bool, len(verbs))
	for _, v := range verbs {
		set[v] = true
	}
	return &EmitDetector{verbs: set}
}

func (d *EmitDetector) Classify(parts []string, fqn string, buckets Buckets) bool {
	if len(parts) < 2 || !d.verbs[parts[len(parts)-1]] {
		return false
	}
	if fqn == "" {
		// An unresolved emit-shaped call still carries signal; keep the
		// dotted name as written.
		fqn = joinDotted(parts)
	}
	buckets.AddEmit(fqn)
	return true
}

func joinDotted(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "." + p
	}
	return out
}
