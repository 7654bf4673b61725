package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const resolverConfigXML = `<?xml version="1.0" encoding="UTF-8"?>
<AttributeResolver xmlns="urn:mace:shibboleth:resolver:1.0">
    <StaticDataConnector id="static" cacheTime="3600">
        <Attribute name="o">
            <Value>Example University</Value>
            <Value>Example College</Value>
        </Attribute>
    </StaticDataConnector>
    <RelationalDatabaseDataConnector id="database"
            cacheTime="300"
            propagateErrors="true"
            failover="static"
            table="shib_attributes"
            principalColumn="principal"
            nameColumn="name"
            valueColumn="value"/>
    <ScopedAttributeDefinition id="eduPersonScopedAffiliation"
            sourceName="eduPersonAffiliation"
            scope="example.edu">
        <DataConnectorDependency requires="database"/>
        <AttributeDependency requires="eduPersonAffiliation"/>
    </ScopedAttributeDefinition>
</AttributeResolver>`

func TestParseResolverConfig(t *testing.T) {
	t.Parallel()

	configs, err := ParseResolverConfig([]byte(resolverConfigXML))
	require.NoError(t, err)
	require.Len(t, configs, 3)

	static := configs[0]
	require.Equal(t, "StaticDataConnector", static.Kind)
	require.Equal(t, "static", static.ID)
	require.EqualValues(t, 3600, static.TTL)
	require.Len(t, static.StaticAttributes, 1)
	require.Equal(t, "o", static.StaticAttributes[0].Name)
	require.Equal(t, []string{"Example University", "Example College"}, static.StaticAttributes[0].Values)

	database := configs[1]
	require.Equal(t, "RelationalDatabaseDataConnector", database.Kind)
	require.True(t, database.PropagateErrors)
	require.Equal(t, "static", database.FailoverID)
	require.Equal(t, "shib_attributes", database.Table)
	require.Equal(t, "principal", database.PrincipalColumn)

	scoped := configs[2]
	require.Equal(t, "ScopedAttributeDefinition", scoped.Kind)
	require.Equal(t, "eduPersonAffiliation", scoped.SourceName)
	require.Equal(t, "example.edu", scoped.Scope)
	require.Equal(t, []string{"database"}, scoped.ConnectorDependencyIDs)
	require.Equal(t, []string{"eduPersonAffiliation"}, scoped.AttributeDependencyIDs)
}

func TestParseResolverConfigRejectsWrongRoot(t *testing.T) {
	t.Parallel()

	_, err := ParseResolverConfig([]byte(`<NotAResolver/>`))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseResolverConfig([]byte(``))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseResolverConfig([]byte(`<AttributeResolver><Unclosed>`))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseResolverConfigEmptyDocument(t *testing.T) {
	t.Parallel()

	configs, err := ParseResolverConfig([]byte(`<AttributeResolver xmlns="urn:mace:shibboleth:resolver:1.0"/>`))
	require.NoError(t, err)
	require.Empty(t, configs)
}
