package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

// Node types recorded per answered question
const (
	NodeUserMessage = "user_message"
	NodeRetrieval   = "retrieval"
	NodeGeneration  = "generation"
)

// GraphNode is one reasoning step
type GraphNode struct {
	ID       int               `json:"id" bson:"id"`
	Type     string            `json:"type" bson:"type"`
	Content  string            `json:"content" bson:"content"`
	Metadata map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// GraphEdge links two reasoning steps
type GraphEdge struct {
	From     int    `json:"from" bson:"from"`
	To       int    `json:"to" bson:"to"`
	Relation string `json:"relation" bson:"relation"`
}

// GraphDocument is the stored form of one conversation's reasoning graph.
// Node IDs start at 1 and grow by one per node.
type GraphDocument struct {
	ConvID string      `json:"conv_id" bson:"_id"`
	Nodes  []GraphNode `json:"nodes" bson:"nodes"`
	Edges  []GraphEdge `json:"edges" bson:"edges"`
}

// NewGraphDocument creates an empty graph for convID
func NewGraphDocument(convID string) GraphDocument {
	return GraphDocument{ConvID: convID, Nodes: []GraphNode{}, Edges: []GraphEdge{}}
}

// ValidateGraphTurn checks a turn before it is recorded and returns the
// trimmed conversation id
func ValidateGraphTurn(convID string, turn repositories.GraphTurn) (string, error) {
	convID = strings.TrimSpace(convID)
	if convID == "" {
		return "", errors.New("conversation ID cannot be empty")
	}
	if strings.TrimSpace(turn.Question) == "" {
		return "", errors.New("question cannot be empty")
	}
	return convID, nil
}

// AppendTurn adds the user -> retrieval -> generation chain of one answer
func (d *GraphDocument) AppendTurn(turn repositories.GraphTurn) {
	user := d.addNode(NodeUserMessage, turn.Question, nil)
	retrieval := d.addNode(NodeRetrieval, strings.Join(turn.Sources, "\n"), map[string]string{
		"hits": strconv.Itoa(len(turn.Sources)),
	})
	generation := d.addNode(NodeGeneration, turn.Answer, nil)

	d.Edges = append(d.Edges,
		GraphEdge{From: user, To: retrieval, Relation: "retrieves"},
		GraphEdge{From: retrieval, To: generation, Relation: "grounds"},
	)
	// Chain consecutive turns of the same conversation
	if user > 1 {
		d.Edges = append(d.Edges, GraphEdge{From: user - 1, To: user, Relation: "follows"})
	}
}

func (d *GraphDocument) addNode(nodeType, content string, metadata map[string]string) int {
	id := len(d.Nodes) + 1
	d.Nodes = append(d.Nodes, GraphNode{ID: id, Type: nodeType, Content: content, Metadata: metadata})
	return id
}

// Graph returns the document as the JSON served to clients
func (d GraphDocument) Graph() (*entities.ReasoningGraph, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return &entities.ReasoningGraph{ConvID: d.ConvID, Raw: raw}, nil
}

type storedGraph struct {
	doc       GraphDocument
	updatedAt time.Time
}

// MemoryGraphRepository is an in-memory implementation of GraphRepository
type MemoryGraphRepository struct {
	mu     sync.RWMutex
	graphs map[string]*storedGraph // conv_id -> graph
	now    func() time.Time
}

var _ repositories.GraphRepository = (*MemoryGraphRepository)(nil)

// NewMemoryGraphRepository creates an empty graph repository
func NewMemoryGraphRepository() *MemoryGraphRepository {
	return &MemoryGraphRepository{
		graphs: make(map[string]*storedGraph),
		now:    time.Now,
	}
}

// RecordTurn appends the user -> retrieval -> generation chain of one answer
func (m *MemoryGraphRepository) RecordTurn(ctx context.Context, convID string, turn repositories.GraphTurn) error {
	convID, err := ValidateGraphTurn(convID, turn)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, exists := m.graphs[convID]
	if !exists {
		g = &storedGraph{doc: NewGraphDocument(convID)}
		m.graphs[convID] = g
	}
	g.doc.AppendTurn(turn)
	g.updatedAt = m.now()

	return nil
}

// Get returns the graph of a conversation as raw JSON
func (m *MemoryGraphRepository) Get(ctx context.Context, convID string) (*entities.ReasoningGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, exists := m.graphs[strings.TrimSpace(convID)]
	if !exists {
		return nil, repositories.ErrGraphNotFound
	}

	return g.doc.Graph()
}

// ExpireIdle implements GraphRepository interface
func (m *MemoryGraphRepository) ExpireIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, errors.New("max idle must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	removed := 0
	for id, g := range m.graphs {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if g.updatedAt.Before(cutoff) {
			delete(m.graphs, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored graphs
func (m *MemoryGraphRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.graphs)
}
