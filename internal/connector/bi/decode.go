package bi

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/jettylabs/jetty-access-control/internal/connector"
)

type projectsEnvelope struct {
	Projects struct {
		Project []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"project"`
	} `json:"projects"`
}

func decodeProjects(r io.Reader) ([]projectRef, error) {
	var env projectsEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, err
	}
	out := make([]projectRef, 0, len(env.Projects.Project))
	for _, p := range env.Projects.Project {
		out = append(out, projectRef{id: p.ID, name: p.Name})
	}
	return out, nil
}

type workbooksEnvelope struct {
	Workbooks struct {
		Workbook []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"workbook"`
	} `json:"workbooks"`
}

func decodeWorkbooks(r io.Reader) ([]connector.AssetRecord, error) {
	var env workbooksEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, err
	}
	out := make([]connector.AssetRecord, 0, len(env.Workbooks.Workbook))
	for _, w := range env.Workbooks.Workbook {
		out = append(out, connector.AssetRecord{
			LocalID:      w.ID,
			PathSegments: []string{w.Name},
			AssetType:    "workbook",
		})
	}
	return out, nil
}

type permissionsEnvelope struct {
	Permissions struct {
		GranteeCapabilities []struct {
			Group struct {
				ID string `json:"id"`
			} `json:"group"`
			Capabilities struct {
				Capability []struct {
					Name string `json:"name"`
					Mode string `json:"mode"`
				} `json:"capability"`
			} `json:"capabilities"`
		} `json:"granteeCapabilities"`
	} `json:"permissions"`
}

func decodePermissionRules(r io.Reader, workbookID string) ([]connector.PolicyRecord, error) {
	var env permissionsEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, err
	}
	var out []connector.PolicyRecord
	for i, gc := range env.Permissions.GranteeCapabilities {
		var privs []string
		for _, cap := range gc.Capabilities.Capability {
			if cap.Mode == "Allow" {
				privs = append(privs, cap.Name)
			}
		}
		if len(privs) == 0 {
			continue
		}
		out = append(out, connector.PolicyRecord{
			LocalID:         workbookID + "-rule-" + strconv.Itoa(i),
			AssetLocalID:    workbookID,
			Privileges:      privs,
			GranteeLocalIDs: []string{gc.Group.ID},
		})
	}
	return out, nil
}
