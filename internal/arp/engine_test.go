package arp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubRepository serves fixed policies so engine behavior can be tested
// without a storage backend.
type stubRepository struct {
	site  *Arp
	users map[string]*Arp
	err   error
}

func (s *stubRepository) AllPolicies(principal string) ([]*Arp, error) {
	if s.err != nil {
		return nil, s.err
	}
	var policies []*Arp
	if s.site != nil {
		policies = append(policies, s.site)
	}
	if user, ok := s.users[principal]; ok {
		policies = append(policies, user)
	}
	return policies, nil
}

func (s *stubRepository) UserPolicy(principal string) (*Arp, error) { return s.users[principal], nil }
func (s *stubRepository) SitePolicy() (*Arp, error)                 { return s.site, nil }
func (s *stubRepository) Update(*Arp) error                         { return nil }
func (s *stubRepository) Remove(*Arp) error                         { return nil }
func (s *stubRepository) Destroy()                                  {}

func mustUnmarshal(t *testing.T, doc string) *Arp {
	t.Helper()
	policy, err := UnmarshalArpDocument([]byte(doc))
	require.NoError(t, err)
	return policy
}

func TestCreateEffectiveArpMergesMatchingRules(t *testing.T) {
	t.Parallel()

	site := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target><AnyTarget/></Target>
            <Attribute name="eduPersonAffiliation"><AnyValue release="permit"/></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	site.SetSitePolicy()

	user := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target><Requester>shar.example.edu</Requester></Target>
            <Attribute name="eduPersonAffiliation"><Value release="deny">staff</Value></Attribute>
        </Rule>
        <Rule>
            <Target><Requester>other.example.edu</Requester></Target>
            <Attribute name="cn"><AnyValue release="permit"/></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	user.SetPrincipal("alice")

	engine := NewEngine(&stubRepository{site: site, users: map[string]*Arp{"alice": user}})

	effective, err := engine.CreateEffectiveArp("alice", "shar.example.edu", "")
	require.NoError(t, err)
	// The any-target site rule and the matching user rule; the rule for the
	// other requester stays out.
	require.Len(t, effective.Rules(), 2)
}

func TestCreateEffectiveArpWrapsRepositoryErrors(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&stubRepository{err: errors.New("backend down")})
	_, err := engine.CreateEffectiveArp("alice", "shar.example.edu", "")
	require.ErrorIs(t, err, ErrProcessing)
}

func TestListPossibleReleaseAttributes(t *testing.T) {
	t.Parallel()

	site := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target><AnyTarget/></Target>
            <Attribute name="eduPersonAffiliation"><AnyValue release="permit"/></Attribute>
            <Attribute name="cn"><Value release="permit">Alice</Value></Attribute>
            <Attribute name="mail"><Value release="deny">alice@example.edu</Value></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	site.SetSitePolicy()

	engine := NewEngine(&stubRepository{site: site})

	names, err := engine.ListPossibleReleaseAttributes("alice", "shar.example.edu", "")
	require.NoError(t, err)
	// mail carries only a deny directive, so it can never be released. The
	// result is sorted by name.
	require.Equal(t, []string{"cn", "eduPersonAffiliation"}, names)
}

func TestFilterAttributesExplicitDenyBeatsAnyValuePermit(t *testing.T) {
	t.Parallel()

	site := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target><AnyTarget/></Target>
            <Attribute name="eduPersonAffiliation"><AnyValue release="permit"/></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	site.SetSitePolicy()

	user := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target><Requester>shar.example.edu</Requester></Target>
            <Attribute name="eduPersonAffiliation"><Value release="deny">staff</Value></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	user.SetPrincipal("alice")

	engine := NewEngine(&stubRepository{site: site, users: map[string]*Arp{"alice": user}})

	resolved := map[string][]string{
		"eduPersonAffiliation": {"member", "staff"},
	}
	released, err := engine.FilterAttributes(resolved, "alice", "shar.example.edu", "")
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"eduPersonAffiliation": {"member"}}, released)

	// A requester the user policy does not target gets everything.
	released, err = engine.FilterAttributes(resolved, "alice", "unrelated.example.edu", "")
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"eduPersonAffiliation": {"member", "staff"}}, released)
}

func TestFilterAttributesAnyValueDenyVetoes(t *testing.T) {
	t.Parallel()

	site := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target><AnyTarget/></Target>
            <Attribute name="mail"><AnyValue release="permit"/></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	site.SetSitePolicy()

	user := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target><AnyTarget/></Target>
            <Attribute name="mail"><AnyValue release="deny"/></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	user.SetPrincipal("alice")

	engine := NewEngine(&stubRepository{site: site, users: map[string]*Arp{"alice": user}})

	released, err := engine.FilterAttributes(map[string][]string{"mail": {"alice@example.edu"}}, "alice", "shar.example.edu", "")
	require.NoError(t, err)
	require.Empty(t, released)
}

func TestFilterAttributesWithoutAnyPermitReleasesNothing(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&stubRepository{})

	released, err := engine.FilterAttributes(map[string][]string{"cn": {"Alice"}}, "alice", "shar.example.edu", "")
	require.NoError(t, err)
	require.Empty(t, released)
}

func TestFilterAttributesResourceScopedRule(t *testing.T) {
	t.Parallel()

	site := mustUnmarshal(t, `<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
        <Rule>
            <Target>
                <Requester>shar.example.edu</Requester>
                <Resource>https://www.example.edu/restricted</Resource>
            </Target>
            <Attribute name="cn"><AnyValue release="permit"/></Attribute>
        </Rule>
    </AttributeReleasePolicy>`)
	site.SetSitePolicy()

	engine := NewEngine(&stubRepository{site: site})
	resolved := map[string][]string{"cn": {"Alice"}}

	released, err := engine.FilterAttributes(resolved, "alice", "shar.example.edu", "https://www.example.edu/restricted/page")
	require.NoError(t, err)
	require.Len(t, released, 1)

	released, err = engine.FilterAttributes(resolved, "alice", "shar.example.edu", "https://www.example.edu/public")
	require.NoError(t, err)
	require.Empty(t, released)
}
