package provider

import (
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/internet2/shibboleth-go-components/internal/resolver"
)

const dialect = "postgres"

// RelationalDatabaseDataConnector fetches a principal's attributes from a
// name/value table. The table and column names come from the declaration.
type RelationalDatabaseDataConnector struct {
	resolver.BasePlugIn
	db              *sql.DB
	failoverID      string
	table           string
	principalColumn string
	nameColumn      string
	valueColumn     string
}

// NewRelationalDatabaseDataConnector builds the connector from its
// declaration. A database handle and the table layout are required.
func NewRelationalDatabaseDataConnector(cfg resolver.PlugInConfig, db *sql.DB) (resolver.ResolutionPlugIn, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: relational data connector (%s) requires a configured database", resolver.ErrConfiguration, cfg.ID)
	}
	if cfg.Table == "" || cfg.PrincipalColumn == "" || cfg.NameColumn == "" || cfg.ValueColumn == "" {
		return nil, fmt.Errorf("%w: relational data connector (%s) requires table, principalColumn, nameColumn and valueColumn", resolver.ErrConfiguration, cfg.ID)
	}
	return &RelationalDatabaseDataConnector{
		BasePlugIn:      resolver.NewBasePlugIn(cfg, resolver.KindDataConnector),
		db:              db,
		failoverID:      cfg.FailoverID,
		table:           cfg.Table,
		principalColumn: cfg.PrincipalColumn,
		nameColumn:      cfg.NameColumn,
		valueColumn:     cfg.ValueColumn,
	}, nil
}

func (c *RelationalDatabaseDataConnector) FailoverDependencyID() string { return c.failoverID }

// Resolve selects the principal's rows and folds them into an attribute set,
// preserving row order within each attribute.
func (c *RelationalDatabaseDataConnector) Resolve(principal, requester string, depends *resolver.Dependencies) (resolver.RawAttributes, error) {
	d := goqu.Dialect(dialect)
	sqlStr, args, buildErr := d.
		From(c.table).
		Select(c.nameColumn, c.valueColumn).
		Where(goqu.Ex{c.principalColumn: principal}).
		Order(goqu.I(c.nameColumn).Asc()).
		Prepared(true).
		ToSQL()
	if buildErr != nil {
		return nil, fmt.Errorf("%w: building query: %v", resolver.ErrResolution, buildErr)
	}

	rows, err := c.db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", resolver.ErrResolution, err)
	}
	defer rows.Close()

	out := resolver.RawAttributes{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("%w: %v", resolver.ErrResolution, err)
		}
		out[name] = append(out[name], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", resolver.ErrResolution, err)
	}
	return out, nil
}
