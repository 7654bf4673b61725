package persistence_file

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/internet2/shibboleth-go-components/internal/arp"
)

// FileArpRepository stores each policy as an XML document in a directory:
// the site policy in arp.site.xml and each principal's policy in
// arp.user.<principal>.xml. Principals are path-escaped so arbitrary
// identifiers map to safe file names.
type FileArpRepository struct {
	dir string
}

// NewFileArpRepository opens a file-backed policy store rooted at dir,
// creating the directory if needed.
func NewFileArpRepository(dir string) (*FileArpRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: no policy directory configured", arp.ErrRepository)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating policy directory: %v", arp.ErrRepository, err)
	}
	return &FileArpRepository{dir: dir}, nil
}

func (r *FileArpRepository) sitePath() string {
	return filepath.Join(r.dir, "arp.site.xml")
}

func (r *FileArpRepository) userPath(principal string) string {
	return filepath.Join(r.dir, "arp.user."+url.PathEscape(principal)+".xml")
}

func (r *FileArpRepository) load(path string) (*arp.Arp, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", arp.ErrRepository, path, err)
	}
	policy, err := arp.UnmarshalArpDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", arp.ErrRepository, path, err)
	}
	return policy, nil
}

// AllPolicies returns the site policy followed by the principal's policy.
func (r *FileArpRepository) AllPolicies(principal string) ([]*arp.Arp, error) {
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
func (r *FileArpRepository) UserPolicy(principal string) (*arp.Arp, error) {
	policy, err := r.load(r.userPath(principal))
	if err != nil || policy == nil {
		return nil, err
	}
	policy.SetPrincipal(principal)
	return policy, nil
}

// SitePolicy returns the site-wide policy, or nil.
func (r *FileArpRepository) SitePolicy() (*arp.Arp, error) {
	policy, err := r.load(r.sitePath())
	if err != nil || policy == nil {
		return nil, err
	}
	policy.SetSitePolicy()
	return policy, nil
}

// Update writes the policy document to its file.
func (r *FileArpRepository) Update(policy *arp.Arp) error {
	data, err := arp.MarshalArpDocument(policy)
	if err != nil {
		return fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}
	path := r.sitePath()
	if !policy.IsSitePolicy() {
		path = r.userPath(policy.Principal())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", arp.ErrRepository, path, err)
	}
	return nil
}

// Remove deletes the policy's file. Removing a policy that does not exist is
// not an error.
func (r *FileArpRepository) Remove(policy *arp.Arp) error {
	path := r.sitePath()
	if !policy.IsSitePolicy() {
		path = r.userPath(policy.Principal())
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %v", arp.ErrRepository, path, err)
	}
	return nil
}

// Destroy releases nothing; files remain on disk.
func (r *FileArpRepository) Destroy() {}
