// Package persistence serializes the access graph to a schema-
// versioned envelope and stores it, alongside a per-connector
// last-fetch timestamp, in a single-file embedded store (spec §4.12).
//
// Grounded on the teacher's internal/mcp/identity_resolver.go bbolt
// cache (bucket-per-concern, View/Update closures over *bolt.Tx), the
// only bbolt usage in the retrieved corpus.
package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jettylabs/jetty-access-control/internal/errors"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// SchemaVersion is bumped whenever the envelope shape changes
// incompatibly; Load refuses to proceed on a mismatch (spec §4.12,
// §7 IntegrityError).
const SchemaVersion = 1

var (
	graphBucket = []byte("graph")
	metaBucket  = []byte("meta")
	snapshotKey = []byte("snapshot")
)

// nodeEnvelope is a tagged union over model's node payload types: the
// JSON encoder/decoder round-trips it by Kind, matching the pattern the
// graph uses at runtime (model.Node is an interface; envelopes give it
// a concrete on-disk shape).
type nodeEnvelope struct {
	Kind          string                   `json:"kind"`
	User          *model.UserNode          `json:"user,omitempty"`
	Group         *model.GroupNode         `json:"group,omitempty"`
	Asset         *model.AssetNode         `json:"asset,omitempty"`
	Policy        *model.PolicyNode        `json:"policy,omitempty"`
	DefaultPolicy *model.DefaultPolicyNode `json:"default_policy,omitempty"`
	Tag           *model.TagNode           `json:"tag,omitempty"`
	PolicyAgent   *model.PolicyAgentNode   `json:"policy_agent,omitempty"`
}

func encodeNode(n model.Node) (nodeEnvelope, error) {
	switch v := n.(type) {
	case *model.UserNode:
		return nodeEnvelope{Kind: "user", User: v}, nil
	case *model.GroupNode:
		return nodeEnvelope{Kind: "group", Group: v}, nil
	case *model.AssetNode:
		return nodeEnvelope{Kind: "asset", Asset: v}, nil
	case *model.PolicyNode:
		return nodeEnvelope{Kind: "policy", Policy: v}, nil
	case *model.DefaultPolicyNode:
		return nodeEnvelope{Kind: "default_policy", DefaultPolicy: v}, nil
	case *model.TagNode:
		return nodeEnvelope{Kind: "tag", Tag: v}, nil
	case *model.PolicyAgentNode:
		return nodeEnvelope{Kind: "policy_agent", PolicyAgent: v}, nil
	default:
		return nodeEnvelope{}, fmt.Errorf("persistence: unknown node type %T", n)
	}
}

func (e nodeEnvelope) decode() (model.Node, error) {
	switch e.Kind {
	case "user":
		return e.User, nil
	case "group":
		return e.Group, nil
	case "asset":
		return e.Asset, nil
	case "policy":
		return e.Policy, nil
	case "default_policy":
		return e.DefaultPolicy, nil
	case "tag":
		return e.Tag, nil
	case "policy_agent":
		return e.PolicyAgent, nil
	default:
		return nil, fmt.Errorf("persistence: unknown node kind %q", e.Kind)
	}
}

// edgeEnvelope stores only the canonical half of each symmetric edge
// pair (the direction whose Kind sorts below its Inverse()); Load
// reconstructs both directions through graphstore.Graph.AddEdge, which
// always inserts an edge and its inverse atomically.
type edgeEnvelope struct {
	From model.NodeName `json:"from"`
	To   model.NodeName `json:"to"`
	Kind model.EdgeKind `json:"kind"`
}

// envelope is the full on-disk graph shape (spec §4.12). It carries no
// wall-clock fields, so Serialize is a pure function of graph content —
// required for invariant 3's "same input list ⇒ byte-equal output".
type envelope struct {
	SchemaVersion int            `json:"schema_version"`
	Nodes         []nodeEnvelope `json:"nodes"`
	Edges         []edgeEnvelope `json:"edges"`
}

func isCanonical(k model.EdgeKind) bool { return k < k.Inverse() }

// Serialize produces the deterministic, schema-versioned byte
// representation of g (spec §4.12, §8 invariant 3). Nodes and edges
// are sorted by name so the output does not depend on the graph's
// internal insertion/iteration order, only on its content.
func Serialize(g *graphstore.Graph) ([]byte, error) {
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name().String() < nodes[j].Name().String() })

	env := envelope{SchemaVersion: SchemaVersion}
	for _, n := range nodes {
		ne, err := encodeNode(n)
		if err != nil {
			return nil, err
		}
		env.Nodes = append(env.Nodes, ne)
	}

	for _, e := range g.Edges() {
		if !isCanonical(e.Kind) {
			continue
		}
		fromNode := g.Node(e.From)
		toNode := g.Node(e.To)
		if fromNode == nil || toNode == nil {
			continue
		}
		env.Edges = append(env.Edges, edgeEnvelope{From: fromNode.Name(), To: toNode.Name(), Kind: e.Kind})
	}
	sort.Slice(env.Edges, func(i, j int) bool {
		if env.Edges[i].From.String() != env.Edges[j].From.String() {
			return env.Edges[i].From.String() < env.Edges[j].From.String()
		}
		if env.Edges[i].To.String() != env.Edges[j].To.String() {
			return env.Edges[i].To.String() < env.Edges[j].To.String()
		}
		return env.Edges[i].Kind < env.Edges[j].Kind
	})

	return json.Marshal(env)
}

// Deserialize rebuilds a Graph from bytes produced by Serialize,
// refusing to proceed on a schema version mismatch (spec §7
// IntegrityError).
func Deserialize(data []byte) (*graphstore.Graph, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.IntegrityError("decode graph envelope: %v", err)
	}
	if env.SchemaVersion != SchemaVersion {
		return nil, errors.IntegrityError("graph schema version %d unsupported (want %d)", env.SchemaVersion, SchemaVersion)
	}

	g := graphstore.New()
	for _, ne := range env.Nodes {
		node, err := ne.decode()
		if err != nil {
			return nil, errors.IntegrityError("%v", err)
		}
		if _, err := g.AddNode(node); err != nil {
			return nil, errors.IntegrityError("rebuild node %s: %v", node.Name(), err)
		}
	}
	for _, ee := range env.Edges {
		if err := g.AddEdge(ee.From, ee.To, ee.Kind); err != nil {
			return nil, errors.IntegrityError("rebuild edge %s-[%s]->%s: %v", ee.From, ee.Kind, ee.To, err)
		}
	}
	return g, nil
}

// Store is the single-file embedded persistence layer: a graph bucket
// holding the latest serialized snapshot, and a meta bucket holding
// each connector namespace's last-fetch timestamp (spec §4.12,
// "a last-modified timestamp is stored alongside").
type Store struct {
	db *bolt.DB
}

// Open creates or opens the bbolt file at path, provisioning both
// buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(graphBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: provision buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file lock.
func (s *Store) Close() error { return s.db.Close() }

// SaveGraph serializes g and atomically replaces the stored snapshot
// (spec §3: "the whole graph is replaced atomically on each fetch").
func (s *Store) SaveGraph(g *graphstore.Graph) error {
	data, err := Serialize(g)
	if err != nil {
		return fmt.Errorf("persistence: serialize graph: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(graphBucket).Put(snapshotKey, data)
	})
}

// LoadGraph reads and reconstructs the stored snapshot. It returns
// (nil, false, nil) when no snapshot has ever been saved.
func (s *Store) LoadGraph() (*graphstore.Graph, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(graphBucket).Get(snapshotKey)
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("persistence: read snapshot: %w", err)
	}
	if data == nil {
		return nil, false, nil
	}
	g, err := Deserialize(data)
	if err != nil {
		return nil, false, err
	}
	return g, true, nil
}

// SetLastFetch records when namespace's connector data was last
// fetched successfully.
func (s *Store) SetLastFetch(namespace string, t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(namespace), []byte(t.UTC().Format(time.RFC3339)))
	})
}

// LastFetch returns namespace's last-fetch time, or false if never
// recorded.
func (s *Store) LastFetch(namespace string) (time.Time, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get([]byte(namespace))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("persistence: read last fetch for %s: %w", namespace, err)
	}
	if raw == nil {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("persistence: parse last fetch for %s: %w", namespace, err)
	}
	return t, true, nil
}

// AllLastFetch returns every namespace's last-fetch time, for the
// HTTP surface's /api/last_fetch endpoint.
func (s *Store) AllLastFetch() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(k, v []byte) error {
			t, err := time.Parse(time.RFC3339, string(v))
			if err != nil {
				return err
			}
			out[string(k)] = t
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: read all last fetch: %w", err)
	}
	return out, nil
}
