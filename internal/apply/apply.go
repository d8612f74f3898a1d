// Package apply orchestrates connector writes (spec §4.10): split a
// global diff by connector namespace, translate it to local ids, call
// each connector's ApplyChanges, and collect per-connector results
// without one connector's failure short-circuiting the others.
//
// Grounded on the teacher's internal/github/client.go bounded-fan-out
// shape (golang.org/x/sync/errgroup), adapted from
// concurrent file fetches to concurrent connector applies since apply
// targets are independent external systems (spec §5: "failures are
// per-connector and do not short-circuit others").
package apply

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/connector/bi"
	"github.com/jettylabs/jetty-access-control/internal/connector/warehouse"
	"github.com/jettylabs/jetty-access-control/internal/diff"
	"github.com/jettylabs/jetty-access-control/internal/errors"
	"github.com/jettylabs/jetty-access-control/internal/logging"
	"github.com/jettylabs/jetty-access-control/internal/translate"
)

// Result is the outcome of applying one namespace's local diff.
type Result struct {
	Namespace string
	Report    *connector.ApplyReport
	Err       error
}

// Orchestrator applies a GlobalDiff across every registered connector.
type Orchestrator struct {
	connectors map[string]connector.Connector
	translator *translate.Translator
}

// New returns an Orchestrator over the given connector registry and
// the translator the build that produced global populated.
func New(connectors map[string]connector.Connector, translator *translate.Translator) *Orchestrator {
	return &Orchestrator{connectors: connectors, translator: translator}
}

// Apply splits global by namespace, translates it, and calls
// ApplyChanges on every connector with a non-empty local diff
// concurrently (spec §5, §4.10). Translation failures for one
// namespace (spec §7 TranslationError, scenario S6) surface as a
// Result with Err set and do not prevent other namespaces from
// applying.
func (o *Orchestrator) Apply(ctx context.Context, global *diff.GlobalDiff) []Result {
	localDiffs, splitErrs := diff.SplitAndTranslate(global, o.translator)

	var mu sync.Mutex
	var results []Result
	g, ctx := errgroup.WithContext(ctx)

	for ns, ld := range localDiffs {
		ns, ld := ns, ld
		conn, ok := o.connectors[ns]
		if !ok {
			logging.Warn("apply: no connector registered for namespace", "namespace", ns)
			continue
		}
		g.Go(func() error {
			report, err := conn.ApplyChanges(ctx, adaptLocalDiff(conn, ld))
			if err != nil {
				err = errors.ApplyError(err, "apply %s", ns)
			}
			mu.Lock()
			results = append(results, Result{Namespace: ns, Report: report, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // worker funcs never return non-nil; all failures are captured per-Result

	for ns, err := range splitErrs {
		results = append(results, Result{Namespace: ns, Err: err})
	}
	return results
}

// Reconcile reports whether postApply — the diff the caller recomputed
// from a freshly rebuilt graph against the same desired config used
// for the prior Apply — is empty. It returns only that verdict; the
// residual changes themselves stay in postApply (spec §4.10,
// invariant 6, scenario S5).
func Reconcile(postApply *diff.GlobalDiff) bool {
	return postApply.IsEmpty()
}

// adaptLocalDiff wraps ld in the narrow view type the concrete
// connector's ApplyChanges type-asserts against, since each connector
// package declares its own unexported localDiffLike to avoid importing
// internal/diff (breaking an import cycle: diff doesn't know about
// connectors, connectors don't know about diff).
func adaptLocalDiff(conn connector.Connector, ld *diff.LocalDiff) connector.LocalDiffApplier {
	switch conn.(type) {
	case *warehouse.Connector:
		return warehouseAdapter{ld}
	case *bi.Connector:
		return biAdapter{ld}
	default:
		return ld
	}
}

type warehouseAdapter struct{ ld *diff.LocalDiff }

func (a warehouseAdapter) IsEmpty() bool { return a.ld.IsEmpty() }

func (a warehouseAdapter) PolicyChanges() []warehouse.PolicyChangeView {
	var out []warehouse.PolicyChangeView
	for _, pc := range a.ld.Policies {
		for _, grantee := range pc.AgentLocalIDs {
			out = append(out, warehouse.PolicyChangeView{
				AssetLocalID: pc.AssetLocalID, GranteeLocalID: grantee,
				Add: pc.AddPrivileges, Remove: pc.RemovePrivileges,
			})
		}
	}
	return out
}

type biAdapter struct{ ld *diff.LocalDiff }

func (a biAdapter) IsEmpty() bool { return a.ld.IsEmpty() }

func (a biAdapter) PolicyChanges() []bi.PolicyChangeView {
	var out []bi.PolicyChangeView
	for _, pc := range a.ld.Policies {
		for _, grantee := range pc.AgentLocalIDs {
			out = append(out, bi.PolicyChangeView{
				AssetLocalID: pc.AssetLocalID, GranteeLocalID: grantee,
				Add: pc.AddPrivileges, Remove: pc.RemovePrivileges,
			})
		}
	}
	return out
}

func (a biAdapter) MembershipChanges() []bi.MembershipChangeView {
	var out []bi.MembershipChangeView
	for _, mc := range a.ld.Memberships {
		out = append(out, bi.MembershipChangeView{GroupLocalID: mc.GroupLocalID})
	}
	return out
}
