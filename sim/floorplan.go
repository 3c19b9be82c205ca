// JSON floor-plan loader. The document is checked against an embedded JSON
// Schema before decoding so that malformed input fails with a structured
// error instead of a half-built graph, then NewFloorGraph enforces the
// semantic invariants (ID uniqueness, endpoint existence, positive
// dimensions, weak connectivity).

package sim

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const floorPlanSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "floor", "pos"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "label": {"type": "string"},
          "type": {"enum": ["room", "junction", "entry", "exit", "stairs", "toilet"]},
          "floor": {"type": "integer"},
          "pos": {
            "type": "array",
            "items": {"type": "number"},
            "minItems": 3,
            "maxItems": 3
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "from", "to", "length_m", "width_m", "capacity_pps"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string", "minLength": 1},
          "length_m": {"type": "number"},
          "width_m": {"type": "number"},
          "capacity_pps": {"type": "number"},
          "is_stairs": {"type": "boolean"}
        }
      }
    }
  }
}`

var compiledFloorPlanSchema = jsonschema.MustCompileString("floorplan.schema.json", floorPlanSchema)

type floorPlanNode struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Type  string     `json:"type"`
	Floor int        `json:"floor"`
	Pos   [3]float64 `json:"pos"`
}

type floorPlanEdge struct {
	ID          string  `json:"id"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	LengthM     float64 `json:"length_m"`
	WidthM      float64 `json:"width_m"`
	CapacityPPS float64 `json:"capacity_pps"`
	IsStairs    bool    `json:"is_stairs"`
}

type floorPlanFile struct {
	Nodes []floorPlanNode `json:"nodes"`
	Edges []floorPlanEdge `json:"edges"`
}

// LoadFloorPlan parses and validates a JSON floor plan. Edges are strictly
// one-directional: a corridor walkable both ways must be declared as two
// opposite edges. The loader never auto-materializes the reverse direction,
// so one-way corridors stay expressible.
func LoadFloorPlan(data []byte) (*FloorGraph, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Issues: []string{fmt.Sprintf("floor plan is not valid JSON: %v", err)}}
	}
	if err := compiledFloorPlanSchema.Validate(doc); err != nil {
		return nil, &ValidationError{Issues: []string{fmt.Sprintf("floor plan schema: %v", err)}}
	}

	var fp floorPlanFile
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, &ValidationError{Issues: []string{fmt.Sprintf("decoding floor plan: %v", err)}}
	}

	nodes := make([]Node, len(fp.Nodes))
	for i, n := range fp.Nodes {
		nodes[i] = Node{
			ID:    n.ID,
			Label: n.Label,
			Kind:  NodeKind(n.Type),
			Floor: n.Floor,
			Pos:   Position3{X: n.Pos[0], Y: n.Pos[1], Z: n.Pos[2]},
		}
	}
	edges := make([]Edge, len(fp.Edges))
	for i, e := range fp.Edges {
		edges[i] = Edge{
			ID:          e.ID,
			From:        e.From,
			To:          e.To,
			Length:      e.LengthM,
			Width:       e.WidthM,
			CapacityPPS: e.CapacityPPS,
			IsStairs:    e.IsStairs,
		}
	}
	return NewFloorGraph(nodes, edges)
}

// LoadFloorPlanFile reads a floor plan from disk.
func LoadFloorPlanFile(path string) (*FloorGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading floor plan: %w", err)
	}
	return LoadFloorPlan(data)
}
