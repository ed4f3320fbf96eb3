package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/graph"
	"github.com/bidfit/backend/pkg/circuitbreaker"
	"github.com/bidfit/backend/pkg/logger"
	"github.com/bidfit/backend/pkg/retry"
)

// Client is the neo4j-backed graph.EdgeStore. All calls go through a circuit
// breaker and bounded retries so a flapping graph database degrades the
// enhanced scoring path instead of failing requests.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j edge store initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// UpsertEdge MERGEs on (source, target, relationship type), so repeated calls
// rewrite strength, confidence and metadata in place. This is the store-level
// guarantee behind the at-most-one-edge-per-tuple invariant.
func (c *Client) UpsertEdge(ctx context.Context, e graph.Edge) error {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal edge metadata: %w", err)
	}

	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MERGE (s:Entity {id: $source_id, type: $source_type})
			MERGE (t:Entity {id: $target_id, type: $target_type})
			MERGE (s)-[r:RELATES {type: $rel_type}]->(t)
			ON CREATE SET r.created_at = timestamp()
			SET r.strength = $strength,
			    r.confidence = $confidence,
			    r.metadata = $metadata,
			    r.updated_at = timestamp()
		`

		_, err := session.Run(ctx, query, map[string]interface{}{
			"source_id":   e.Source.ID,
			"source_type": e.Source.Type,
			"target_id":   e.Target.ID,
			"target_type": e.Target.Type,
			"rel_type":    e.Type,
			"strength":    e.Strength,
			"confidence":  e.Confidence,
			"metadata":    string(metadataJSON),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert edge: %w", err)
		}

		logger.Debug("Edge upserted",
			zap.String("source", e.Source.ID),
			zap.String("target", e.Target.ID),
			zap.String("type", e.Type),
		)
		return nil
	})
}

func (c *Client) EdgesTouching(ctx context.Context, ref graph.EntityRef, typeFilter string) ([]graph.Edge, error) {
	var edges []graph.Edge

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (s:Entity)-[r:RELATES]->(t:Entity)
			WHERE ((s.id = $id AND s.type = $type) OR (t.id = $id AND t.type = $type))
			  AND ($rel_type = '' OR r.type = $rel_type)
			RETURN s.id, s.type, t.id, t.type, r.type, r.strength, r.confidence
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"id":       ref.ID,
			"type":     ref.Type,
			"rel_type": typeFilter,
		})
		if err != nil {
			return fmt.Errorf("failed to query edges: %w", err)
		}

		edges = edges[:0]
		for result.Next(ctx) {
			record := result.Record()

			sourceID, _ := record.Get("s.id")
			sourceType, _ := record.Get("s.type")
			targetID, _ := record.Get("t.id")
			targetType, _ := record.Get("t.type")
			relType, _ := record.Get("r.type")
			strength, _ := record.Get("r.strength")
			confidence, _ := record.Get("r.confidence")

			edges = append(edges, graph.Edge{
				Source:     graph.EntityRef{ID: sourceID.(string), Type: sourceType.(string)},
				Target:     graph.EntityRef{ID: targetID.(string), Type: targetType.(string)},
				Type:       relType.(string),
				Strength:   strength.(float64),
				Confidence: confidence.(float64),
			})
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating edges: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return edges, nil
}
