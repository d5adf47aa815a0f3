package serialize

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

// EncodeFixture writes one table's fixture document. Record and attribute
// order is preserved by building the YAML mapping nodes by hand; a plain map
// would lose row order.
func EncodeFixture(w io.Writer, table types.FixtureTable) error {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, row := range table.Rows {
		rowNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, attr := range row.Attributes {
			valueNode := &yaml.Node{}
			if err := valueNode.Encode(attr.Value); err != nil {
				return fmt.Errorf("table %s, record %s: failed to encode %s: %w",
					table.Name, row.Key, attr.Column, err)
			}
			rowNode.Content = append(rowNode.Content, scalarNode(attr.Column), valueNode)
		}
		root.Content = append(root.Content, scalarNode(row.Key), rowNode)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("failed to encode fixture for table %s: %w", table.Name, err)
	}
	return nil
}

// DecodeFixture reads a fixture document back as plain structured data, the
// same way a generic fixture loader would.
func DecodeFixture(data []byte) (map[string]map[string]interface{}, error) {
	out := make(map[string]map[string]interface{})
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	return out, nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
