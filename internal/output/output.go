// Package output renders diff/plan/apply results at three verbosity
// tiers (spec §6's CLI surface), mirroring the teacher's
// Formatter/VerbosityLevel family (internal/output/formatter.go,
// quiet.go, standard.go).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jettylabs/jetty-access-control/internal/apply"
	"github.com/jettylabs/jetty-access-control/internal/diff"
)

// VerbosityLevel determines how much a Formatter prints.
type VerbosityLevel int

const (
	VerbosityQuiet    VerbosityLevel = iota // one-line summary
	VerbosityStandard                       // per-change list
	VerbosityExplain                        // full detail: grantees, privilege sets, skip reasons
)

// GetDefaultVerbosity mirrors the teacher's environment-sensing
// default: a CI context gets the standard (non-interactive-friendly)
// tier, anything else gets the same — jetty has no pre-commit-hook
// context, so there is only one environment signal worth checking.
func GetDefaultVerbosity() VerbosityLevel {
	if os.Getenv("CI") == "true" {
		return VerbosityStandard
	}
	return VerbosityStandard
}

// Formatter renders a GlobalDiff (used for both `diff` and `plan`,
// which differ only in whether the CLI subsequently calls apply) and
// an apply run's per-connector results.
type Formatter interface {
	FormatDiff(d *diff.GlobalDiff, w io.Writer) error
	FormatApply(results []apply.Result, w io.Writer) error
}

// NewFormatter returns the Formatter for level.
func NewFormatter(level VerbosityLevel) Formatter {
	switch level {
	case VerbosityQuiet:
		return quietFormatter{}
	case VerbosityExplain:
		return explainFormatter{}
	default:
		return standardFormatter{}
	}
}

func opSymbol(op diff.ChangeOp) string {
	switch op {
	case diff.OpAddAgent:
		return "+"
	case diff.OpRemoveAgent:
		return "-"
	case diff.OpModifyAgent:
		return "~"
	default:
		return "?"
	}
}

func countChanges(d *diff.GlobalDiff) int {
	return len(d.Policies) + len(d.DefaultPolicies) + len(d.Memberships) + len(d.Identities)
}

// quietFormatter prints a single summary line, mirroring
// QuietFormatter's pre-commit-hook style.
type quietFormatter struct{}

func (quietFormatter) FormatDiff(d *diff.GlobalDiff, w io.Writer) error {
	n := countChanges(d)
	if n == 0 {
		fmt.Fprintln(w, "no changes")
		return nil
	}
	fmt.Fprintf(w, "%d change(s) pending\n", n)
	return nil
}

func (quietFormatter) FormatApply(results []apply.Result, w io.Writer) error {
	applied, failed := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if r.Report != nil {
			applied += r.Report.Applied
		}
	}
	if failed == 0 {
		fmt.Fprintf(w, "applied %d change(s)\n", applied)
		return nil
	}
	fmt.Fprintf(w, "applied %d change(s), %d connector(s) failed\n", applied, failed)
	return nil
}

// standardFormatter lists each change one per line, grouped by kind.
type standardFormatter struct{}

func (standardFormatter) FormatDiff(d *diff.GlobalDiff, w io.Writer) error {
	if countChanges(d) == 0 {
		fmt.Fprintln(w, "no changes")
		return nil
	}

	if len(d.Policies) > 0 {
		fmt.Fprintln(w, "Policies:")
		for _, pc := range d.Policies {
			fmt.Fprintf(w, "  %s %s %s/%s\n", opSymbol(pc.Op), pc.Key.Asset, pc.Key.AgentKind, pc.Key.AgentKey)
		}
	}
	if len(d.DefaultPolicies) > 0 {
		fmt.Fprintln(w, "Default policies:")
		for _, dc := range d.DefaultPolicies {
			fmt.Fprintf(w, "  %s %s%s\n", opSymbol(dc.Op), dc.Key.Anchor, dc.Key.WildcardPath)
		}
	}
	if len(d.Memberships) > 0 {
		fmt.Fprintln(w, "Memberships:")
		for _, mc := range d.Memberships {
			fmt.Fprintf(w, "  ~ %s@%s: +%d -%d users, +%d -%d groups\n",
				mc.Group.Name, mc.Group.Origin, len(mc.AddUsers), len(mc.RemoveUsers), len(mc.AddGroups), len(mc.RemoveGroups))
		}
	}
	if len(d.Identities) > 0 {
		fmt.Fprintln(w, "Identities:")
		for _, ic := range d.Identities {
			fmt.Fprintf(w, "  ~ %s: +%d -%d platform id(s)\n", ic.Email, len(ic.AddPlatform), len(ic.RemovePlatform))
		}
	}
	return nil
}

func (standardFormatter) FormatApply(results []apply.Result, w io.Writer) error {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", r.Namespace, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s: applied %d, skipped %d, %d error(s)\n", r.Namespace, r.Report.Applied, len(r.Report.Skipped), len(r.Report.Errors))
	}
	return nil
}

// explainFormatter prints every field of every change, including
// grantees and privilege sets, for investigation/debugging (the
// teacher's ExplainFormatter/DisplayPhase2Trace tier).
type explainFormatter struct{}

func (explainFormatter) FormatDiff(d *diff.GlobalDiff, w io.Writer) error {
	if countChanges(d) == 0 {
		fmt.Fprintln(w, "no changes")
		return nil
	}
	for _, pc := range d.Policies {
		fmt.Fprintf(w, "policy %s %s/%s %s: +%v -%v (connector_managed=%v) grantees=%v\n",
			opSymbol(pc.Op), pc.Key.Asset, pc.Key.AgentKind, pc.Key.AgentKey,
			pc.AddPrivileges.Slice(), pc.RemovePrivileges.Slice(), pc.ConnectorManaged, pc.Grantees)
	}
	for _, dc := range d.DefaultPolicies {
		fmt.Fprintf(w, "default_policy %s %s%s types=%v: +%v -%v managed_transition=%v grantees=%v\n",
			opSymbol(dc.Op), dc.Key.Anchor, dc.Key.WildcardPath, dc.Key.TargetTypes,
			dc.AddPrivileges.Slice(), dc.RemovePrivileges.Slice(), dc.ManagedTransition, dc.Grantees)
	}
	for _, mc := range d.Memberships {
		fmt.Fprintf(w, "membership ~ %s@%s: add_users=%v remove_users=%v add_groups=%v remove_groups=%v\n",
			mc.Group.Name, mc.Group.Origin, mc.AddUsers, mc.RemoveUsers, mc.AddGroups, mc.RemoveGroups)
	}
	for _, ic := range d.Identities {
		fmt.Fprintf(w, "identity ~ %s: add_platform=%v remove_platform=%v\n", ic.Email, ic.AddPlatform, ic.RemovePlatform)
	}
	return nil
}

func (explainFormatter) FormatApply(results []apply.Result, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, r := range results {
		entry := map[string]any{"namespace": r.Namespace}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		} else {
			entry["applied"] = r.Report.Applied
			entry["skipped"] = r.Report.Skipped
			entry["errors"] = errStrings(r.Report.Errors)
		}
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}

func errStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
