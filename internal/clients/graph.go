package clients

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphClient is the Neo4j knowledge graph. All merges are keyed by a
// natural key (URL for events, name for everything else) so repeated
// discovery cycles stay idempotent.
type GraphClient struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewGraphClient(ctx context.Context, uri, user, password, database string) (*GraphClient, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &GraphClient{driver: driver, database: database}, nil
}

func (c *GraphClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *GraphClient) session(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
}

// Query runs a read-only cypher statement.
func (c *GraphClient) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.session(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, fmt.Errorf("graph query: %w", err)
	}
	return out.([]map[string]any), nil
}

// Write runs a mutating cypher statement.
func (c *GraphClient) Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.session(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, fmt.Errorf("graph write: %w", err)
	}
	return out.([]map[string]any), nil
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]map[string]any, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.AsMap())
	}
	return out, nil
}

// MergeEvent upserts an event node keyed by URL.
func (c *GraphClient) MergeEvent(ctx context.Context, url string, props map[string]any) error {
	_, err := c.Write(ctx, "MERGE (e:Event {url: $url}) SET e += $props RETURN e",
		map[string]any{"url": url, "props": props})
	return err
}

// MergePerson upserts a person node keyed by name.
func (c *GraphClient) MergePerson(ctx context.Context, name string, props map[string]any) error {
	_, err := c.Write(ctx, "MERGE (p:Person {name: $name}) SET p += $props RETURN p",
		map[string]any{"name": name, "props": props})
	return err
}

// MergeCompany upserts a company node keyed by name.
func (c *GraphClient) MergeCompany(ctx context.Context, name string, props map[string]any) error {
	_, err := c.Write(ctx, "MERGE (c:Company {name: $name}) SET c += $props RETURN c",
		map[string]any{"name": name, "props": props})
	return err
}

// MergeTopic upserts a topic node keyed by name.
func (c *GraphClient) MergeTopic(ctx context.Context, name string) error {
	_, err := c.Write(ctx, "MERGE (t:Topic {name: $name}) RETURN t",
		map[string]any{"name": name})
	return err
}

// CreateRelationship merges a typed relationship between two nodes
// matched by label and key property. Labels and relationship types
// come from code, never from user input, so string interpolation here
// is safe.
func (c *GraphClient) CreateRelationship(ctx context.Context, fromLabel, fromKey, fromValue, relType, toLabel, toKey, toValue string) error {
	cypher := fmt.Sprintf(
		"MATCH (a:%s {%s: $fromVal}) MATCH (b:%s {%s: $toVal}) MERGE (a)-[r:%s]->(b) RETURN type(r)",
		fromLabel, fromKey, toLabel, toKey, relType)
	_, err := c.Write(ctx, cypher, map[string]any{"fromVal": fromValue, "toVal": toValue})
	return err
}
