package persistence_postgresql

import (
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/internet2/shibboleth-go-components/internal/arp"
)

const storedPolicyXML = `<?xml version="1.0" encoding="UTF-8"?>
<AttributeReleasePolicy xmlns="urn:mace:shibboleth:arp:1.0">
    <Rule>
        <Target><AnyTarget/></Target>
        <Attribute name="eduPersonAffiliation"><AnyValue release="permit"/></Attribute>
    </Rule>
</AttributeReleasePolicy>`

func newMockRepository(t *testing.T) (*PostgreSQLArpRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgreSQLArpRepositoryWithDB(db), mock
}

func TestUserPolicyQueriesByPrincipal(t *testing.T) {
	t.Parallel()

	sut, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .*"document".*FROM .*"shib_arp"`).
		WithArgs(false, "alice").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(storedPolicyXML))

	policy, err := sut.UserPolicy("alice")
	require.NoError(t, err)
	require.NotNil(t, policy)
	require.Equal(t, "alice", policy.Principal())
	require.False(t, policy.IsSitePolicy())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSitePolicyMissingReturnsNil(t *testing.T) {
	t.Parallel()

	sut, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .*"document".*FROM .*"shib_arp"`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	policy, err := sut.SitePolicy()
	require.NoError(t, err)
	require.Nil(t, policy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPolicyQueryError(t *testing.T) {
	t.Parallel()

	sut, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .*"document".*FROM .*"shib_arp"`).
		WillReturnError(errors.New("connection reset"))

	policy, err := sut.UserPolicy("alice")
	require.ErrorIs(t, err, arp.ErrRepository)
	require.Nil(t, policy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPolicyCorruptDocument(t *testing.T) {
	t.Parallel()

	sut, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .*"document".*FROM .*"shib_arp"`).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow("not xml"))

	policy, err := sut.UserPolicy("alice")
	require.ErrorIs(t, err, arp.ErrRepository)
	require.Nil(t, policy)
}

func TestUpdateUpsertsPolicyRow(t *testing.T) {
	t.Parallel()

	sut, mock := newMockRepository(t)

	mock.ExpectExec(`INSERT INTO .*"shib_arp".*ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	policy := arp.NewArp("alice")
	policy.AddRule(&arp.Rule{Target: arp.Target{AnyTarget: true}})
	require.NoError(t, sut.Update(policy))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveDeletesPolicyRow(t *testing.T) {
	t.Parallel()

	sut, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM .*"shib_arp"`).
		WithArgs(false, "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sut.Remove(arp.NewArp("alice")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllPoliciesOrdersSiteFirst(t *testing.T) {
	t.Parallel()

	sut, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .*"document".*FROM .*"shib_arp"`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(storedPolicyXML))
	mock.ExpectQuery(`SELECT .*"document".*FROM .*"shib_arp"`).
		WithArgs(false, "alice").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(storedPolicyXML))

	policies, err := sut.AllPolicies("alice")
	require.NoError(t, err)
	require.Len(t, policies, 2)
	require.True(t, policies[0].IsSitePolicy())
	require.Equal(t, "alice", policies[1].Principal())
	require.NoError(t, mock.ExpectationsWereMet())
}
