// Package translate maps between connector-local identifiers and
// global NodeNames (spec §4.5). The index is populated during build
// and only read afterward; Record takes a write lock and every lookup
// a read lock, so concurrent lookups are safe.
package translate

import (
	"fmt"
	"sync"

	"github.com/jettylabs/jetty-access-control/internal/model"
)

// localKey identifies one connector-local entity.
type localKey struct {
	namespace string
	kind      string // "user", "group" or "asset" (the kinds the builder records)
	localID   string
}

// Translator holds the per-connector local-id → NodeName index built
// during Build, and answers both directions (spec §4.5).
type Translator struct {
	mu      sync.RWMutex
	toName  map[localKey]model.NodeName
	toLocal map[model.NodeName]map[string]localKey // name -> namespace -> local key
}

// New returns an empty translator.
func New() *Translator {
	return &Translator{
		toName:  make(map[localKey]model.NodeName),
		toLocal: make(map[model.NodeName]map[string]localKey),
	}
}

// Record indexes one connector-local id against the global name the
// builder resolved it to. Safe to call repeatedly with the same
// mapping (idempotent), but records a fatal programmer error if the
// same (namespace, kind, localID) is later pointed at a different
// name — that would mean the builder itself is non-deterministic. A
// single name may be recorded under several namespaces (the same user
// seen by two connectors), each kept independently.
func (t *Translator) Record(namespace, kind, localID string, name model.NodeName) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := localKey{namespace: namespace, kind: kind, localID: localID}
	if existing, ok := t.toName[key]; ok && existing != name {
		return fmt.Errorf("translate: local id %s/%s/%s already maps to %s, cannot also map to %s",
			namespace, kind, localID, existing, name)
	}
	t.toName[key] = name
	if t.toLocal[name] == nil {
		t.toLocal[name] = make(map[string]localKey)
	}
	t.toLocal[name][namespace] = key
	return nil
}

// ToGlobal resolves a connector-local id to its NodeName.
func (t *Translator) ToGlobal(namespace, kind, localID string) (model.NodeName, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.toName[localKey{namespace: namespace, kind: kind, localID: localID}]
	return name, ok
}

// UntranslatableError reports a NodeName the target connector has
// never seen (spec §4.5: "fails with Untranslatable(name) ... surfaced
// as a precondition violation, not silently dropped").
type UntranslatableError struct {
	Namespace string
	Name      model.NodeName
}

func (e *UntranslatableError) Error() string {
	return fmt.Sprintf("translate: %s has no local id for %s in namespace %s", e.Name, e.Name, e.Namespace)
}

// ToLocal resolves name to its connector-local id within namespace.
// It returns *UntranslatableError when namespace has never observed
// name, per spec §4.5's precondition-violation contract.
func (t *Translator) ToLocal(namespace string, name model.NodeName) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	byNamespace, ok := t.toLocal[name]
	if !ok {
		return "", &UntranslatableError{Namespace: namespace, Name: name}
	}
	key, ok := byNamespace[namespace]
	if !ok {
		return "", &UntranslatableError{Namespace: namespace, Name: name}
	}
	return key.localID, nil
}
