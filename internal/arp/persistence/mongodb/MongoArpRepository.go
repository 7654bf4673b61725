package persistence_mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/internet2/shibboleth-go-components/internal/arp"
)

const (
	collectionName = "arps"
	opTimeout      = 5 * time.Second
)

// arpDocument is the stored shape of one policy: the XML document plus its
// scope key. The site policy is the document with site = true.
type arpDocument struct {
	Principal string `bson:"principal"`
	Site      bool   `bson:"site"`
	Document  string `bson:"document"`
}

// MongoArpRepository stores one document per policy in the arps collection.
type MongoArpRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoArpRepository connects to MongoDB and opens the policy collection.
func NewMongoArpRepository(uri, database string) (*MongoArpRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to mongodb: %v", arp.ErrRepository, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%w: pinging mongodb: %v", arp.ErrRepository, err)
	}
	return &MongoArpRepository{
		client:     client,
		collection: client.Database(database).Collection(collectionName),
	}, nil
}

func (r *MongoArpRepository) findOne(filter bson.M) (*arp.Arp, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var doc arpDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}

	policy, err := arp.UnmarshalArpDocument([]byte(doc.Document))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing stored policy: %v", arp.ErrRepository, err)
	}
	return policy, nil
}

// AllPolicies returns the site policy followed by the principal's policy.
func (r *MongoArpRepository) AllPolicies(principal string) ([]*arp.Arp, error) {
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
func (r *MongoArpRepository) UserPolicy(principal string) (*arp.Arp, error) {
	policy, err := r.findOne(bson.M{"principal": principal, "site": false})
	if err != nil || policy == nil {
		return nil, err
	}
	policy.SetPrincipal(principal)
	return policy, nil
}

// SitePolicy returns the site-wide policy, or nil.
func (r *MongoArpRepository) SitePolicy() (*arp.Arp, error) {
	policy, err := r.findOne(bson.M{"site": true})
	if err != nil || policy == nil {
		return nil, err
	}
	policy.SetSitePolicy()
	return policy, nil
}

// Update upserts the policy document.
func (r *MongoArpRepository) Update(policy *arp.Arp) error {
	document, err := arp.MarshalArpDocument(policy)
	if err != nil {
		return fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	filter := bson.M{"principal": policy.Principal(), "site": policy.IsSitePolicy()}
	doc := arpDocument{
		Principal: policy.Principal(),
		Site:      policy.IsSitePolicy(),
		Document:  string(document),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}
	return nil
}

// Remove deletes the policy document. Removing a policy that does not exist
// is not an error.
func (r *MongoArpRepository) Remove(policy *arp.Arp) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	filter := bson.M{"principal": policy.Principal(), "site": policy.IsSitePolicy()}
	if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("%w: %v", arp.ErrRepository, err)
	}
	return nil
}

// Destroy disconnects from MongoDB.
func (r *MongoArpRepository) Destroy() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = r.client.Disconnect(ctx)
}
