// Package graph maintains the contact graph in Neo4j: one Person node per
// card, one Company node per organization, connected by WORKS_AT edges. It
// gives the card collection a relational view the vector store cannot answer,
// such as "who else works at this company".
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ContactGraph provides graph operations over the Neo4j driver.
type ContactGraph struct {
	driver neo4j.DriverWithContext
}

// New creates a ContactGraph.
func New(driver neo4j.DriverWithContext) *ContactGraph {
	return &ContactGraph{driver: driver}
}

// SaveCard upserts the person node for a card and, when the card names a
// company, the company node and the WORKS_AT edge.
func (g *ContactGraph) SaveCard(ctx context.Context, p Person, c Company) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (p:Person {card_id: $card_id}) SET p += $props`
	if _, err := sess.Run(ctx, cypher, map[string]any{
		"card_id": p.CardID,
		"props":   personToMap(p),
	}); err != nil {
		return fmt.Errorf("graph: save person %s: %w", p.CardID, err)
	}

	if c.Key == "" {
		return nil
	}

	cypher = `MERGE (c:Company {key: $key}) SET c += $props
		WITH c
		MATCH (p:Person {card_id: $card_id})
		MERGE (p)-[:WORKS_AT]->(c)`
	if _, err := sess.Run(ctx, cypher, map[string]any{
		"key":     c.Key,
		"props":   companyToMap(c),
		"card_id": p.CardID,
	}); err != nil {
		return fmt.Errorf("graph: save company %s: %w", c.Key, err)
	}
	return nil
}

// Colleagues returns people who work at the same company as the given card,
// excluding the card itself.
func (g *ContactGraph) Colleagues(ctx context.Context, cardID string) ([]Person, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (p:Person {card_id: $card_id})-[:WORKS_AT]->(c:Company)<-[:WORKS_AT]-(other:Person)
		WHERE other.card_id <> $card_id
		RETURN DISTINCT other`
	result, err := sess.Run(ctx, cypher, map[string]any{"card_id": cardID})
	if err != nil {
		return nil, fmt.Errorf("graph: colleagues of %s: %w", cardID, err)
	}
	return collectPeople(ctx, result, "other")
}

// CompanyDirectory returns all people recorded at a company.
func (g *ContactGraph) CompanyDirectory(ctx context.Context, companyName string) ([]Person, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (p:Person)-[:WORKS_AT]->(c:Company {key: $key}) RETURN p`
	result, err := sess.Run(ctx, cypher, map[string]any{"key": CompanyKey(companyName)})
	if err != nil {
		return nil, fmt.Errorf("graph: directory of %s: %w", companyName, err)
	}
	return collectPeople(ctx, result, "p")
}

func collectPeople(ctx context.Context, result neo4j.ResultWithContext, column string) ([]Person, error) {
	var people []Person
	for result.Next(ctx) {
		raw, ok := result.Record().Get(column)
		if !ok {
			continue
		}
		node, ok := raw.(dbtype.Node)
		if !ok {
			continue
		}
		people = append(people, personFromProps(node.Props))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: collect: %w", err)
	}
	return people, nil
}
