// Package httpapi implements the read-only graph query surface of
// spec §6, served over stdlib net/http using Go 1.22+ pattern routing
// (no router dependency appears anywhere in the retrieved corpus for a
// read-only JSON API; justified in DESIGN.md).
package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/logging"
	"github.com/jettylabs/jetty-access-control/internal/model"
	"github.com/jettylabs/jetty-access-control/internal/persistence"
	"github.com/jettylabs/jetty-access-control/internal/resolve"
	"github.com/jettylabs/jetty-access-control/internal/traverse"
)

// Server exposes the graph via the endpoints of spec §6: /api/nodes,
// /api/user/:id/..., /api/group/:origin::name/..., /api/asset/<view>?id=<cual>,
// /api/tag/..., /api/last_fetch.
type Server struct {
	graph    *graphstore.Graph
	resolver *resolve.Resolver
	store    *persistence.Store
	mux      *http.ServeMux
}

// New builds a Server over graph, using store for the last-fetch
// endpoint (may be nil if the caller never persists).
func New(graph *graphstore.Graph, store *persistence.Store) *Server {
	s := &Server{graph: graph, resolver: resolve.New(graph), store: store, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP lets Server be passed directly to http.Serve/http.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/nodes", s.handleNodes)
	s.mux.HandleFunc("GET /api/user/{email}/{view}", s.handleUser)
	s.mux.HandleFunc("GET /api/group/{compound}/{view}", s.handleGroup)
	s.mux.HandleFunc("GET /api/asset/{view}", s.handleAsset)
	s.mux.HandleFunc("GET /api/tag/{name}/{view}", s.handleTag)
	s.mux.HandleFunc("GET /api/last_fetch", s.handleLastFetch)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("httpapi: encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleNodes lists every node in the graph by its NodeName string
// (spec §6 `/api/nodes`).
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes := s.graph.Nodes()
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name().String()
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

// handleUser serves /api/user/:id/{assets,tags,direct_groups,inherited_groups}.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	userName := model.UserName(email)
	h, ok := s.graph.GetHandle(userName)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown user "+email)
		return
	}

	switch r.PathValue("view") {
	case "direct_groups":
		writeJSON(w, http.StatusOK, namesOf(s.graph, directGroupsOf(s.graph, h)))
	case "inherited_groups":
		writeJSON(w, http.StatusOK, namesOf(s.graph, transitiveMinusDirect(s.graph, h, directGroupsOf(s.graph, h))))
	case "assets":
		writeJSON(w, http.StatusOK, s.assetsForUser(userName))
	case "tags":
		writeJSON(w, http.StatusOK, s.tagsForUser(userName))
	default:
		writeError(w, http.StatusNotFound, "unknown user view")
	}
}

// handleGroup serves /api/group/:origin::name/{...}. The origin::name
// pair is carried in a single path segment (Go's ServeMux wildcards
// match one segment at a time and both fields can themselves contain
// slashes-free identifiers), split on the "::" spec §6 literally uses.
func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	origin, name, ok := strings.Cut(r.PathValue("compound"), "::")
	if !ok {
		writeError(w, http.StatusBadRequest, "group id must be origin::name")
		return
	}
	groupName := model.GroupNodeName(name, origin)
	h, ok := s.graph.GetHandle(groupName)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown group "+origin+"::"+name)
		return
	}

	switch r.PathValue("view") {
	case "direct_groups":
		writeJSON(w, http.StatusOK, namesOf(s.graph, directGroupsOf(s.graph, h)))
	case "inherited_groups":
		writeJSON(w, http.StatusOK, namesOf(s.graph, transitiveMinusDirect(s.graph, h, directGroupsOf(s.graph, h))))
	case "direct_members_users":
		writeJSON(w, http.StatusOK, namesOf(s.graph, membersOf(s.graph, h, func(n model.Node) bool {
			_, ok := n.(*model.UserNode)
			return ok
		})))
	case "direct_members_groups":
		writeJSON(w, http.StatusOK, namesOf(s.graph, membersOf(s.graph, h, func(n model.Node) bool {
			_, ok := n.(*model.GroupNode)
			return ok
		})))
	case "all_members":
		writeJSON(w, http.StatusOK, namesOf(s.graph, allMembersOf(s.graph, h)))
	default:
		writeError(w, http.StatusNotFound, "unknown group view")
	}
}

// handleAsset serves /api/asset/{policies,default_policies,tags}?id=<cual>.
// A CUAL contains "://" and further slashes, which Go's ServeMux would
// otherwise clean/redirect if embedded as a path segment, so the asset
// id travels as a query parameter instead; only the view name is
// path-routed.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	cual := r.URL.Query().Get("id")
	view := r.PathValue("view")
	if cual == "" {
		writeError(w, http.StatusBadRequest, "expected ?id=<cual>")
		return
	}

	h, ok := s.graph.GetHandle(model.AssetName(cual))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown asset "+cual)
		return
	}

	switch view {
	case "policies":
		writeJSON(w, http.StatusOK, namesOf(s.graph, neighborsByEdge(s.graph, h, model.EdgeGovernedBy)))
	case "default_policies":
		var out []graphstore.Handle
		for _, e := range s.graph.OutEdges(h) {
			if e.Kind != model.EdgeGovernedBy {
				continue
			}
			if _, ok := s.graph.Node(e.To).(*model.DefaultPolicyNode); ok {
				out = append(out, e.To)
			}
		}
		writeJSON(w, http.StatusOK, namesOf(s.graph, out))
	case "tags":
		writeJSON(w, http.StatusOK, namesOf(s.graph, neighborsByEdge(s.graph, h, model.EdgeTaggedAs)))
	default:
		writeError(w, http.StatusNotFound, "unknown asset view")
	}
}

// handleTag serves /api/tag/:name/applied_to.
func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	h, ok := s.graph.GetHandle(model.TagName(name))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tag "+name)
		return
	}
	switch r.PathValue("view") {
	case "applied_to":
		writeJSON(w, http.StatusOK, namesOf(s.graph, neighborsByEdge(s.graph, h, model.EdgeAppliedTo)))
	default:
		writeError(w, http.StatusNotFound, "unknown tag view")
	}
}

// handleLastFetch serves /api/last_fetch: every connector namespace's
// last successful fetch time.
func (s *Server) handleLastFetch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	all, err := s.store.AllLastFetch()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func neighborsByEdge(g *graphstore.Graph, h graphstore.Handle, kind model.EdgeKind) []graphstore.Handle {
	return g.Neighbors(h, func(k model.EdgeKind) bool { return k == kind })
}

func directGroupsOf(g *graphstore.Graph, h graphstore.Handle) []graphstore.Handle {
	return neighborsByEdge(g, h, model.EdgeMemberOf)
}

func membersOf(g *graphstore.Graph, h graphstore.Handle, predicate func(model.Node) bool) []graphstore.Handle {
	var out []graphstore.Handle
	for _, e := range g.OutEdges(h) {
		if e.Kind != model.EdgeIncludes {
			continue
		}
		if predicate(g.Node(e.To)) {
			out = append(out, e.To)
		}
	}
	return out
}

func allMembersOf(g *graphstore.Graph, h graphstore.Handle) []graphstore.Handle {
	return traverse.BFS(g, h, traverse.BFSOptions{
		EdgePredicate:   func(k model.EdgeKind) bool { return k == model.EdgeIncludes },
		TargetPredicate: func(model.Node) bool { return true },
	})
}

// transitiveMinusDirect walks MemberOf beyond depth 1 and excludes the
// already-reported direct set, giving the "inherited" views their own
// membership distinct from "direct" (spec §6).
func transitiveMinusDirect(g *graphstore.Graph, h graphstore.Handle, direct []graphstore.Handle) []graphstore.Handle {
	directSet := make(map[graphstore.Handle]struct{}, len(direct))
	for _, d := range direct {
		directSet[d] = struct{}{}
	}
	all := traverse.BFS(g, h, traverse.BFSOptions{
		EdgePredicate:   func(k model.EdgeKind) bool { return k == model.EdgeMemberOf },
		TargetPredicate: func(model.Node) bool { return true },
	})
	var out []graphstore.Handle
	for _, a := range all {
		if _, isDirect := directSet[a]; !isDirect {
			out = append(out, a)
		}
	}
	return out
}

func namesOf(g *graphstore.Graph, handles []graphstore.Handle) []string {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		out = append(out, g.Node(h).Name().String())
	}
	sort.Strings(out)
	return out
}

// assetsForUser resolves every asset the user has any effective
// privilege on (spec §4.7 C7 resolver), for the /assets view.
func (s *Server) assetsForUser(user model.NodeName) []string {
	var out []string
	for _, n := range s.graph.Nodes() {
		asset, ok := n.(*model.AssetNode)
		if !ok {
			continue
		}
		perm, err := s.resolver.Resolve(user, asset.Name())
		if err != nil || len(perm.Privileges) == 0 {
			continue
		}
		out = append(out, asset.CUAL)
	}
	sort.Strings(out)
	return out
}

// tagsForUser collects every tag applied to an asset the user has any
// effective privilege on.
func (s *Server) tagsForUser(user model.NodeName) []string {
	seen := make(map[string]struct{})
	for _, cual := range s.assetsForUser(user) {
		h, ok := s.graph.GetHandle(model.AssetName(cual))
		if !ok {
			continue
		}
		for _, tagH := range neighborsByEdge(s.graph, h, model.EdgeTaggedAs) {
			seen[s.graph.Node(tagH).Name().String()] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
