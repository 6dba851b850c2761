package analysis

// FunctionReport is the cross-reference record for one analyzed function
// or method: the FQNs it calls, instantiates and reads as shared module
// state. Each list is ordered by first occurrence and deduplicated.
type FunctionReport struct {
	Name           string   `json:"name"`
	Args           []string `json:"args"`
	Calls          []string `json:"calls"`
	Instantiations []string `json:"instantiations"`
	AccessedState  []string `json:"accessed_state"`
	Emits          []string `json:"emits,omitempty"`
}

type ClassReport struct {
	Name    string           `json:"name"`
	Methods []FunctionReport `json:"methods"`
}

type StateItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ModuleReport struct {
	Module      string            `json:"module"`
	Imports     map[string]string `json:"imports"`
	Classes     []ClassReport     `json:"classes"`
	Functions   []FunctionReport  `json:"functions"`
	ModuleState []StateItem       `json:"module_state"`
}

// Buckets is the classification surface handed to call classifiers. Every
// add is idempotent per function: a target seen twice is recorded once.
type Buckets interface {
	AddCall(fqn string)
	AddInstantiation(fqn string)
	AddState(fqn string)
	AddEmit(fqn string)
}

// recorder accumulates one FunctionReport. It is created at function
// entry, threaded through every resolution, and frozen at function exit.
type recorder struct {
	report FunctionReport
	seen   map[string]bool
}

func newRecorder(name string, args []string) *recorder {
	return &recorder{
		report: FunctionReport{Name: name, Args: args},
		seen:   make(map[string]bool),
	}
}

func (r *recorder) add(bucket string, fqn string, dst *[]string) {
	key := bucket + "\x00" + fqn
	if fqn == "" || r.seen[key] {
		return
	}
	r.seen[key] = true
	*dst = append(*dst, fqn)
}

func (r *recorder) AddCall(fqn string)          { r.add("call", fqn, &r.report.Calls) }
func (r *recorder) AddInstantiation(fqn string) { r.add("inst", fqn, &r.report.Instantiations) }
func (r *recorder) AddState(fqn string)         { r.add("state", fqn, &r.report.AccessedState) }
func (r *recorder) AddEmit(fqn string)          { r.add("emit", fqn, &r.report.Emits) }

func (r *recorder) freeze() FunctionReport { return r.report }
