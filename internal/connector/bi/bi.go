// Package bi implements a connector for REST-based BI/dashboard
// platforms with a site/project/workbook hierarchy and
// permission-rule privilege model (Tableau and similar tools).
//
// Grounded on the teacher's internal/github/client.go: a
// rate.Limiter-gated HTTP client fanning work out across a bounded
// worker pool with errgroup, adapted from GitHub's tree/blob fetch to
// a REST site's project/workbook/view listing.
package bi

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jettylabs/jetty-access-control/internal/config"
	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/errors"
)

// maxWorkers bounds concurrent REST calls to one site (spec §5: "no
// single connector fetch may hold more than 15 workers").
const maxWorkers = 15

// Config is the bi connector's declared config.
type Config struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`
	SiteID    string `mapstructure:"site_id" yaml:"site_id"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// Connector lists a BI site's projects, workbooks and workbook
// permission rules over its REST API; it does not list views, groups
// or users.
type Connector struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	authToken   string
}

// New authenticates against the site using the connector's resolved
// credentials (spec §4.11).
func New(ctx context.Context, cfg Config, creds *config.CredentialManager) (*Connector, error) {
	token, err := creds.Get(cfg.Namespace, "token", false)
	if err != nil {
		return nil, errors.ConnectorError(err, false, "bi %s: resolve token", cfg.Namespace)
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 10
	}

	return &Connector{
		cfg:         cfg,
		httpClient:  http.DefaultClient,
		rateLimiter: rate.NewLimiter(rate.Limit(limit), 1),
		authToken:   token,
	}, nil
}

// Manifest declares the privileges this connector's workbooks,
// projects, and views can hold (spec §4.11).
func (c *Connector) Manifest() connector.Manifest {
	priv := func(ps ...string) map[string]struct{} {
		s := make(map[string]struct{}, len(ps))
		for _, p := range ps {
			s[p] = struct{}{}
		}
		return s
	}
	return connector.Manifest{
		Namespace: c.cfg.Namespace,
		Kind:      "bi",
		AssetPrivileges: connector.AssetPrivileges{
			"project":  priv("view", "publish"),
			"workbook": priv("view", "export", "filter"),
			"view":     priv("view", "export"),
		},
		Capabilities: map[connector.Capability]struct{}{
			"default_policies": {},
		},
	}
}

// GetData lists the site's projects, fans the per-project workbook
// listings out across at most maxWorkers concurrent requests bounded
// by the connector's rate limiter (spec §5), then fetches each
// workbook's permission rules one request at a time.
func (c *Connector) GetData(ctx context.Context) (*connector.Data, error) {
	projects, err := c.listProjects(ctx)
	if err != nil {
		return nil, err
	}

	data := &connector.Data{Namespace: c.cfg.Namespace}
	for _, p := range projects {
		data.Assets = append(data.Assets, connector.AssetRecord{
			LocalID:      p.id,
			PathSegments: []string{p.name},
			AssetType:    "project",
		})
	}

	workbooks, err := c.fetchWorkbooksConcurrently(ctx, projects)
	if err != nil {
		return nil, err
	}
	data.Assets = append(data.Assets, workbooks...)

	rules, err := c.fetchPermissionRules(ctx, workbooks)
	if err != nil {
		return nil, err
	}
	data.Policies = append(data.Policies, rules...)

	return data, nil
}

type projectRef struct {
	id   string
	name string
}

func (c *Connector) listProjects(ctx context.Context) ([]projectRef, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.ConnectorError(err, true, "bi %s: rate limiter", c.cfg.Namespace)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerURL+"/api/sites/"+c.cfg.SiteID+"/projects", nil)
	if err != nil {
		return nil, errors.ConnectorError(err, false, "bi %s: build projects request", c.cfg.Namespace)
	}
	req.Header.Set("X-Tableau-Auth", c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ConnectorError(err, true, "bi %s: list projects", c.cfg.Namespace)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ConnectorError(fmt.Errorf("status %d", resp.StatusCode), true, "bi %s: list projects", c.cfg.Namespace)
	}

	return decodeProjects(resp.Body)
}

// fetchWorkbooksConcurrently fans out one workbook-listing request per
// project across a worker pool bounded by maxWorkers, exactly the
// teacher's GetTree pattern generalized from a single repo tree to N
// independent project listings.
func (c *Connector) fetchWorkbooksConcurrently(ctx context.Context, projects []projectRef) ([]connector.AssetRecord, error) {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan projectRef, len(projects))
	for _, p := range projects {
		jobs <- p
	}
	close(jobs)

	results := make(chan connector.AssetRecord, len(projects)*8)
	workerCount := maxWorkers
	if workerCount > len(projects) {
		workerCount = len(projects)
	}
	if workerCount == 0 {
		workerCount = 1
	}

	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for p := range jobs {
				if err := c.rateLimiter.Wait(ctx); err != nil {
					return err
				}
				books, err := c.listWorkbooks(ctx, p)
				if err != nil {
					return err
				}
				for _, b := range books {
					results <- b
				}
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	var out []connector.AssetRecord
	for r := range results {
		out = append(out, r)
	}
	if err := g.Wait(); err != nil {
		return nil, errors.ConnectorError(err, true, "bi %s: fetch workbooks", c.cfg.Namespace)
	}
	return out, nil
}

func (c *Connector) listWorkbooks(ctx context.Context, p projectRef) ([]connector.AssetRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerURL+"/api/sites/"+c.cfg.SiteID+"/projects/"+p.id+"/workbooks", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Tableau-Auth", c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	records, err := decodeWorkbooks(resp.Body)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].ParentLocalID = p.id
	}
	return records, nil
}

func (c *Connector) fetchPermissionRules(ctx context.Context, workbooks []connector.AssetRecord) ([]connector.PolicyRecord, error) {
	var out []connector.PolicyRecord
	for _, wb := range workbooks {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.ConnectorError(err, true, "bi %s: rate limiter", c.cfg.Namespace)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerURL+"/api/sites/"+c.cfg.SiteID+"/workbooks/"+wb.LocalID+"/permissions", nil)
		if err != nil {
			return nil, errors.ConnectorError(err, false, "bi %s: build permissions request", c.cfg.Namespace)
		}
		req.Header.Set("X-Tableau-Auth", c.authToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.ConnectorError(err, true, "bi %s: fetch permissions for %s", c.cfg.Namespace, wb.LocalID)
		}
		rules, err := decodePermissionRules(resp.Body, wb.LocalID)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, rules...)
	}
	return out, nil
}

// ApplyChanges updates permission rules for the changes this
// connector is asked to apply. Membership changes are reported as
// skipped — this BI platform has no group-membership write API
// (spec §4.10: "a connector applies only the subset of change kinds
// its capabilities cover"). Identity changes are not handed to this
// connector (localDiffLike has no identity view) and do not appear in
// the report.
func (c *Connector) ApplyChanges(ctx context.Context, diff connector.LocalDiffApplier) (*connector.ApplyReport, error) {
	ld, ok := diff.(localDiffLike)
	if !ok {
		return nil, errors.ApplyError(nil, "bi %s: unsupported diff type", c.cfg.Namespace)
	}

	report := &connector.ApplyReport{}
	for _, pc := range ld.PolicyChanges() {
		if err := c.applyPermissionRule(ctx, pc); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Applied++
	}
	for range ld.MembershipChanges() {
		report.Skipped = append(report.Skipped, connector.SkipReason{
			Reason: "unsupported_change_kind",
			Detail: "bi connector has no group-membership write API",
		})
	}
	return report, nil
}

func (c *Connector) applyPermissionRule(ctx context.Context, pc PolicyChangeView) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.cfg.ServerURL+"/api/sites/"+c.cfg.SiteID+"/workbooks/"+pc.AssetLocalID+"/permissions", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Tableau-Auth", c.authToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d applying permission rule for %s", resp.StatusCode, pc.AssetLocalID)
	}
	return nil
}

// localDiffLike mirrors warehouse's narrow adapter surface so this
// package doesn't import internal/diff directly.
type localDiffLike interface {
	PolicyChanges() []PolicyChangeView
	MembershipChanges() []MembershipChangeView
}

type PolicyChangeView struct {
	AssetLocalID   string
	GranteeLocalID string
	Add            []string
	Remove         []string
}

type MembershipChangeView struct {
	GroupLocalID string
}
