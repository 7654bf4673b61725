package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/internet2/shibboleth-go-components/internal/arp"
	persistence_inmemory "github.com/internet2/shibboleth-go-components/internal/arp/persistence/inmemory"
	"github.com/internet2/shibboleth-go-components/internal/resolver"
	"github.com/internet2/shibboleth-go-components/internal/resolver/provider"
)

const resolverXML = `<?xml version="1.0" encoding="UTF-8"?>
<AttributeResolver xmlns="urn:mace:shibboleth:resolver:1.0">
    <StaticDataConnector id="static">
        <Attribute name="eduPersonAffiliation">
            <Value>member</Value>
            <Value>staff</Value>
        </Attribute>
        <Attribute name="cn">
            <Value>Alice Example</Value>
        </Attribute>
    </StaticDataConnector>
    <SimpleAttributeDefinition id="eduPersonAffiliation">
        <DataConnectorDependency requires="static"/>
    </SimpleAttributeDefinition>
    <SimpleAttributeDefinition id="cn">
        <DataConnectorDependency requires="static"/>
    </SimpleAttributeDefinition>
</AttributeResolver>`

const sitePolicyXML = `<?xml version="1.0" encoding="UTF-8"?>
<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
    <Rule>
        <Target><AnyTarget/></Target>
        <Attribute name="eduPersonAffiliation"><AnyValue release="permit"/></Attribute>
    </Rule>
</AttributeReleasePolicy>`

const userPolicyXML = `<?xml version="1.0" encoding="UTF-8"?>
<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
    <Rule>
        <Target><Requester>shar.example.edu</Requester></Target>
        <Attribute name="eduPersonAffiliation"><Value release="deny">staff</Value></Attribute>
    </Rule>
</AttributeReleasePolicy>`

func newTestService(t *testing.T) *AttributeAuthorityService {
	t.Helper()

	repo := persistence_inmemory.NewInMemoryArpRepository()

	site, err := arp.UnmarshalArpDocument([]byte(sitePolicyXML))
	require.NoError(t, err)
	site.SetSitePolicy()
	require.NoError(t, repo.Update(site))

	user, err := arp.UnmarshalArpDocument([]byte(userPolicyXML))
	require.NoError(t, err)
	user.SetPrincipal("alice")
	require.NoError(t, repo.Update(user))

	res, err := resolver.NewAttributeResolver([]byte(resolverXML), provider.DefaultRegistry(nil))
	require.NoError(t, err)
	t.Cleanup(res.Close)

	return NewAttributeAuthorityService(arp.NewEngine(repo), res)
}

func TestReleaseAttributesAppliesPolicy(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	released, err := service.ReleaseAttributes("alice", "shar.example.edu", "", nil)
	require.NoError(t, err)
	// The site policy permits any affiliation value; the user policy vetoes
	// staff for this requester. cn is resolvable but never releasable.
	require.Equal(t, map[string][]string{"eduPersonAffiliation": {"member"}}, released)
}

func TestReleaseAttributesOtherRequesterGetsEverything(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	released, err := service.ReleaseAttributes("alice", "unrelated.example.edu", "", nil)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"eduPersonAffiliation": {"member", "staff"}}, released)
}

func TestReleaseAttributesExplicitNamesStillFiltered(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	released, err := service.ReleaseAttributes("alice", "shar.example.edu", "", []string{"cn", "eduPersonAffiliation"})
	require.NoError(t, err)
	// cn resolves but no policy permits it, so it is filtered out.
	require.Equal(t, map[string][]string{"eduPersonAffiliation": {"member"}}, released)
}

func TestReleaseAttributesRequiresPrincipal(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	_, err := service.ReleaseAttributes("", "shar.example.edu", "", nil)
	require.Error(t, err)
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	router := chi.NewRouter()
	NewAttributeAuthorityController(newTestService(t)).RegisterRoutes(router)
	return router
}

func TestGetAttributesEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/attributes?principal=alice&requester=shar.example.edu", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body AttributeQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "alice", body.Principal)
	require.Equal(t, map[string][]string{"eduPersonAffiliation": {"member"}}, body.Attributes)
}

func TestGetAttributesRequiresPrincipal(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/attributes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "principal")
}

func TestGetAttributesWithNamesParameter(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/attributes?principal=alice&requester=unrelated.example.edu&names=eduPersonAffiliation,%20cn", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body AttributeQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, map[string][]string{"eduPersonAffiliation": {"member", "staff"}}, body.Attributes)
}
