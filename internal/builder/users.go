package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// buildUsers emits one User node per distinct identity, coalescing
// connector-local user records by best-available identifier: prefer
// email; fall back to the record's whole other-names set (two records
// coalesce only when those sets have identical members); fall back to
// (platform-id, connector) (spec §4.4 step 1, decided Open Question
// (a) in DESIGN.md). A user seen on two connectors with no shared
// identifier at any rank stays split into two nodes — this is the
// deliberate non-coalescing behavior the spec calls out.
func (b *Builder) buildUsers(inputs []Input, stats *Stats) error {
	for _, in := range inputs {
		for _, rec := range in.Data.Users {
			name := resolveUserIdentity(rec, in.Namespace)

			node := &model.UserNode{
				Email:          name.User,
				FirstName:      rec.FirstName,
				LastName:       rec.LastName,
				PlatformIDs:    map[string]string{in.Namespace: rec.PlatformID},
				OtherNames:     model.NewStringSet(rec.OtherNames...),
				ConnectorsSeen: model.NewStringSet(in.Namespace),
				Metadata:       cloneMetadata(rec.Metadata),
			}

			h, err := b.graph.AddNode(node)
			if err != nil {
				return mustNotFatal(err, in.Namespace, "build_users")
			}
			_ = h
			stats.Users++

			if err := b.translator.Record(in.Namespace, "user", rec.LocalID, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveUserIdentity picks the NodeName a user record coalesces
// under. Email is authoritative when present (the highest-ranked
// identifier per DESIGN.md's Open Question (a) decision); a record
// with no email falls back to a canonicalized other-names set so two
// connectors reporting the same user's other-names in different
// orders still resolve to the same key (a true per-record index pick
// would let ordering split one person into two nodes), and only truly
// identifier-less records fall back to the (platform-id, connector)
// pair, which by construction never coalesces across connectors.
func resolveUserIdentity(rec connector.UserRecord, namespace string) model.NodeName {
	if rec.Email != "" {
		return model.UserName(rec.Email)
	}
	if len(rec.OtherNames) > 0 {
		return model.UserName(canonicalOtherNamesKey(rec.OtherNames))
	}
	return model.UserName(fmt.Sprintf("%s:%s", namespace, rec.PlatformID))
}

// canonicalOtherNamesKey sorts a copy of names and joins them so that
// two sets sharing the same members — regardless of the order a
// connector happened to report them in — produce an identical key.
// This is what makes the other-names coalescing rule order-independent:
// two records whose other-names sets have exactly the same members
// collapse to the same NodeName; sets that only partly overlap stay
// distinct.
func canonicalOtherNamesKey(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
