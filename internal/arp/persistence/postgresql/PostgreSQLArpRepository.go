/*******************************************************************************
* Copyright (C) 2025 the Shibboleth Go Components Authors
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

package persistence_postgresql

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/lib/pq"

	"github.com/internet2/shibboleth-go-components/internal/arp"
	"github.com/internet2/shibboleth-go-components/internal/common"
)

const (
	dialect = "postgres"

	tblArp       = "shib_arp"
	colPrincipal = "principal"
	colIsSite    = "is_site"
	colDocument  = "document"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS shib_arp (
    principal TEXT NOT NULL,
    is_site   BOOLEAN NOT NULL DEFAULT FALSE,
    document  TEXT NOT NULL,
    PRIMARY KEY (principal, is_site)
);`

// PostgreSQLArpRepository stores one row per policy. The site policy is the
// row with is_site = true and an empty principal; each user policy is keyed
// by its principal.
type PostgreSQLArpRepository struct {
	db *sql.DB
}

// NewPostgreSQLArpRepository connects to the database and bootstraps the
// policy table.
func NewPostgreSQLArpRepository(dsn string, maxOpenConns, maxIdleConns int) (*PostgreSQLArpRepository, error) {
	db, err := common.InitializeDatabase(dsn, maxOpenConns, maxIdleConns, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("%w: creating schema: %v", arp.ErrRepository, err)
	}
	return &PostgreSQLArpRepository{db: db}, nil
}

// NewPostgreSQLArpRepositoryWithDB wraps an existing connection, which the
// tests use to substitute a mock.
func NewPostgreSQLArpRepositoryWithDB(db *sql.DB) *PostgreSQLArpRepository {
	return &PostgreSQLArpRepository{db: db}
}

func (r *PostgreSQLArpRepository) queryPolicy(where goqu.Ex) (*arp.Arp, error) {
	d := goqu.Dialect(dialect)
	sqlStr, args, buildErr := d.
		From(tblArp).
		Select(colDocument).
		Where(where).
		Prepared(true).
		ToSQL()
	if buildErr != nil {
		return nil, fmt.Errorf("%w: building query: %v", arp.ErrRepository, buildErr)
	}

	var document string
	err := r.db.QueryRow(sqlStr, args...).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}

	policy, err := arp.UnmarshalArpDocument([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing stored policy: %v", arp.ErrRepository, err)
	}
	return policy, nil
}

// AllPolicies returns the site policy followed by the principal's policy.
func (r *PostgreSQLArpRepository) AllPolicies(principal string) ([]*arp.Arp, error) {
	var policies []*arp.Arp
	site, err := r.SitePolicy()
	if err != nil {
		return nil, err
	}
	if site != nil {
		policies = append(policies, site)
	}
	user, err := r.UserPolicy(principal)
	if err != nil {
		return nil, err
	}
	if user != nil {
		policies = append(policies, user)
	}
	return policies, nil
}

// UserPolicy returns the policy owned by the principal, or nil.
func (r *PostgreSQLArpRepository) UserPolicy(principal string) (*arp.Arp, error) {
	policy, err := r.queryPolicy(goqu.Ex{colPrincipal: principal, colIsSite: goqu.V(false)})
	if err != nil || policy == nil {
		return nil, err
	}
	policy.SetPrincipal(principal)
	return policy, nil
}

// SitePolicy returns the site-wide policy, or nil.
func (r *PostgreSQLArpRepository) SitePolicy() (*arp.Arp, error) {
	policy, err := r.queryPolicy(goqu.Ex{colIsSite: goqu.V(true)})
	if err != nil || policy == nil {
		return nil, err
	}
	policy.SetSitePolicy()
	return policy, nil
}

// Update upserts the policy row.
func (r *PostgreSQLArpRepository) Update(policy *arp.Arp) error {
	document, err := arp.MarshalArpDocument(policy)
	if err != nil {
		return fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}

	d := goqu.Dialect(dialect)
	sqlStr, args, buildErr := d.
		Insert(tblArp).
		Rows(goqu.Record{
			colPrincipal: policy.Principal(),
			colIsSite:    policy.IsSitePolicy(),
			colDocument:  string(document),
		}).
		OnConflict(goqu.DoUpdate(colPrincipal+","+colIsSite, goqu.Record{colDocument: string(document)})).
		Prepared(true).
		ToSQL()
	if buildErr != nil {
		return fmt.Errorf("%w: building upsert: %v", arp.ErrRepository, buildErr)
	}
	if _, err := r.db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}
	return nil
}

// Remove deletes the policy row. Removing a policy that does not exist is
// not an error.
func (r *PostgreSQLArpRepository) Remove(policy *arp.Arp) error {
	d := goqu.Dialect(dialect)
	sqlStr, args, buildErr := d.
		Delete(tblArp).
		Where(goqu.Ex{colPrincipal: policy.Principal(), colIsSite: goqu.V(policy.IsSitePolicy())}).
		Prepared(true).
		ToSQL()
	if buildErr != nil {
		return fmt.Errorf("%w: building delete: %v", arp.ErrRepository, buildErr)
	}
	if _, err := r.db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}
	return nil
}

// Destroy closes the database connection.
func (r *PostgreSQLArpRepository) Destroy() {
	_ = r.db.Close()
}
