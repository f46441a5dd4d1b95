package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/magda-io/magda-auth-oidc/magda"
)

// fakeAuthAPI is an in-memory stand-in for the Magda authorization API with
// just enough behavior for the strategy and provisioner tests.
type fakeAuthAPI struct {
	users    map[string]magda.User // source + "/" + sourceId
	orgUnits []magda.OrgUnit

	createdUsers    int
	createdOrgUnits int
	grantedRoles    map[string][]string

	failRoleGrants bool
}

func newFakeAuthAPI(t *testing.T) (*fakeAuthAPI, *magda.Client) {
	t.Helper()
	api := &fakeAuthAPI{
		users:        map[string]magda.User{},
		grantedRoles: map[string][]string{},
	}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := magda.NewClient(server.URL+"/v0", "test-secret", "service-user", 5*time.Second, hclog.NewNullLogger())
	require.NoError(t, err)
	return api, client
}

func (a *fakeAuthAPI) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case req.Method == "GET" && req.URL.Path == "/v0/private/users/lookup":
		key := req.URL.Query().Get("source") + "/" + req.URL.Query().Get("sourceId")
		user, ok := a.users[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(user)

	case req.Method == "POST" && req.URL.Path == "/v0/private/users":
		var user magda.User
		_ = json.NewDecoder(req.Body).Decode(&user)
		user.ID = "new-user-id"
		a.users[user.Source+"/"+user.SourceID] = user
		a.createdUsers++
		_ = json.NewEncoder(w).Encode(user)

	case req.Method == "GET" && req.URL.Path == "/v0/public/orgUnits":
		name := req.URL.Query().Get("orgUnitsName")
		matches := []magda.OrgUnit{}
		for _, n := range a.orgUnits {
			if n.Name == name {
				matches = append(matches, n)
			}
		}
		_ = json.NewEncoder(w).Encode(matches)

	case req.Method == "GET" && req.URL.Path == "/v0/public/orgUnits/root":
		_ = json.NewEncoder(w).Encode(magda.OrgUnit{ID: "root-id", Name: "Root"})

	case req.Method == "POST" && req.URL.Path == "/v0/public/orgUnits/root-id/insert":
		var node magda.OrgUnit
		_ = json.NewDecoder(req.Body).Decode(&node)
		node.ID = "new-org-unit-id"
		a.orgUnits = append(a.orgUnits, node)
		a.createdOrgUnits++
		_ = json.NewEncoder(w).Encode(node)

	case req.Method == "POST" && req.URL.Path == "/v0/public/users/new-user-id/roles":
		if a.failRoleGrants {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var roleIDs []string
		_ = json.NewDecoder(req.Body).Decode(&roleIDs)
		a.grantedRoles["new-user-id"] = append(a.grantedRoles["new-user-id"], roleIDs...)
		_ = json.NewEncoder(w).Encode(roleIDs)

	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}
